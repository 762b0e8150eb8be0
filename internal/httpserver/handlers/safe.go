package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/migasfree/migasfree-backend/internal/domain"
	"github.com/migasfree/migasfree-backend/internal/envelope"
	"github.com/migasfree/migasfree-backend/internal/httpserver/deps"
	"github.com/migasfree/migasfree-backend/internal/keystore"
	"github.com/migasfree/migasfree-backend/internal/logger"
	"github.com/migasfree/migasfree-backend/internal/store"
	msync "github.com/migasfree/migasfree-backend/internal/sync"
)

type safeRequest struct {
	Msg     string `json:"msg"`
	Project string `json:"project"`
}

type safeResponse struct {
	Msg string `json:"msg"`
}

// SafeCommand accepts the token transport: a JOSE envelope signed with the
// project key and encrypted to the server key, carrying
// {"cmd":…, "name":…, "uuid":…, "data":…}. When the request arrives through
// a TLS-terminating proxy that forwards the client certificate subject in
// X-SSL-Client-CN, the CN identity must match the claimed computer.
func SafeCommand(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req safeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Msg == "" || req.Project == "" {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		project, err := d.Repos.Projects.ByName(r.Context(), req.Project)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "unknown project", http.StatusNotFound)
				return
			}
			d.Logger.Error("project lookup failed", logger.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		serverPriv, err := d.Keys.PrivateKey(keystore.ServerKeyName)
		if err != nil {
			d.Logger.Error("server key unavailable", logger.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		projectPub, err := d.Keys.PublicKey(project.Slug)
		if err != nil {
			d.Logger.Error("project key unavailable",
				logger.String("project", project.Slug),
				logger.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		reply := func(payload map[string]any) {
			token, err := envelope.Wrap(payload, serverPriv, projectPub)
			if err != nil {
				d.Logger.Error("wrap reply failed", logger.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(safeResponse{Msg: token})
		}

		claims, err := envelope.Unwrap(req.Msg, serverPriv, projectPub)
		if err != nil {
			reply(domain.ErrorEnvelope(domain.CodeInvalidSignature, ""))
			return
		}

		cmd, _ := claims["cmd"].(string)
		name, _ := claims["name"].(string)
		uuid, _ := claims["uuid"].(string)
		data, _ := claims["data"].(map[string]any)

		if cn := r.Header.Get("X-SSL-Client-CN"); cn != "" {
			if !cnMatches(r, d, cn, uuid, name) {
				reply(domain.ErrorEnvelope(domain.CodeUserHaveNotPermission, "client certificate identity mismatch"))
				return
			}
		}

		res, err := d.Sync.HandleSafe(r.Context(), msync.SafeRequest{
			Command: cmd,
			Name:    name,
			UUID:    uuid,
			Data:    data,
		})
		if err != nil {
			d.Logger.Error("safe exchange failed",
				logger.String("command", cmd),
				logger.Error(err))
			res = domain.ErrorEnvelope(domain.CodeGeneric, "")
		}
		reply(res)
	}
}

// cnMatches cross-checks the forwarded certificate subject
// "/O=org/OU=unit/CN={UUID}_{computer_id}" against the claimed computer.
// A present but unparseable or mismatching header is a hard failure.
func cnMatches(r *http.Request, d deps.Deps, cn, uuid, name string) bool {
	cnUUID, cnID, ok := parseClientCN(cn)
	if !ok {
		return false
	}

	c, err := d.Sync.Reconciler().Lookup(r.Context(), uuid, name)
	if err != nil {
		return false
	}
	if c.ID != cnID {
		return false
	}
	return strings.EqualFold(c.UUID, cnUUID) ||
		strings.EqualFold(domain.ChangeUUIDFormat(c.UUID), cnUUID)
}

func parseClientCN(cn string) (uuid string, id int64, ok bool) {
	idx := strings.LastIndex(cn, "CN=")
	if idx < 0 {
		return "", 0, false
	}
	subject := cn[idx+len("CN="):]
	sep := strings.LastIndex(subject, "_")
	if sep <= 0 || sep == len(subject)-1 {
		return "", 0, false
	}
	id, err := strconv.ParseInt(subject[sep+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return subject[:sep], id, true
}
