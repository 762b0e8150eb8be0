// Package sync implements the synchronization protocol core: command
// dispatch, computer identity reconciliation, the sync-attribute rebuild
// pipeline and the per-command handlers. The transport hands it one request
// body and gets back one wrapped reply; everything stateful happens through
// the injected repositories.
package sync

import (
	"strings"

	"github.com/google/uuid"
)

// Command is the closed set of protocol operations. Dispatch is a switch
// over this enum; an unrecognized wire name maps to CmdUnknown and answers
// with a command-not-found envelope.
type Command int

const (
	CmdUnknown Command = iota

	// Registration tier: username+password, no prior keys.
	CmdRegisterComputer
	CmdGetKeyPackager

	// Packager tier: packager keypair.
	CmdUploadServerPackage
	CmdUploadServerSet
	CmdCreateRepositoriesOfPackageset

	// Project tier: per-project keypair, known computer.
	CmdGetProperties
	CmdUploadComputerInfo
	CmdUploadComputerMessage
	CmdUploadComputerHardware
	CmdUploadComputerFaults
	CmdUploadComputerErrors
	CmdSetComputerTags
	CmdGetComputerTags

	// Deprecated, kept for protocol compatibility. Always answers ok.
	CmdUploadDevicesChanges
)

// Tier is the authentication precondition class of a command.
type Tier int

const (
	TierNone Tier = iota
	TierRegistration
	TierPackager
	TierProject
)

var commandNames = map[Command]string{
	CmdRegisterComputer:               "register_computer",
	CmdGetKeyPackager:                 "get_key_packager",
	CmdUploadServerPackage:            "upload_server_package",
	CmdUploadServerSet:                "upload_server_set",
	CmdCreateRepositoriesOfPackageset: "create_repositories_of_packageset",
	CmdGetProperties:                  "get_properties",
	CmdUploadComputerInfo:             "upload_computer_info",
	CmdUploadComputerMessage:          "upload_computer_message",
	CmdUploadComputerHardware:         "upload_computer_hardware",
	CmdUploadComputerFaults:           "upload_computer_faults",
	CmdUploadComputerErrors:           "upload_computer_errors",
	CmdSetComputerTags:                "set_computer_tags",
	CmdGetComputerTags:                "get_computer_tags",
	CmdUploadDevicesChanges:           "upload_devices_changes",
}

var commandsByName = func() map[string]Command {
	m := make(map[string]Command, len(commandNames))
	for c, n := range commandNames {
		m[n] = c
	}
	return m
}()

// ParseCommand maps a wire command name onto the enum.
func ParseCommand(name string) Command {
	return commandsByName[name]
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "unknown"
}

// Tier returns the command's authentication tier.
func (c Command) Tier() Tier {
	switch c {
	case CmdRegisterComputer, CmdGetKeyPackager:
		return TierRegistration
	case CmdUploadServerPackage, CmdUploadServerSet, CmdCreateRepositoriesOfPackageset:
		return TierPackager
	case CmdGetProperties, CmdUploadComputerInfo, CmdUploadComputerMessage,
		CmdUploadComputerHardware, CmdUploadComputerFaults, CmdUploadComputerErrors,
		CmdSetComputerTags, CmdGetComputerTags, CmdUploadDevicesChanges:
		return TierProject
	}
	return TierNone
}

// Request identifies one parsed protocol request.
type Request struct {
	Name    string
	UUID    string
	Command Command
	RawCmd  string
}

// ParseRequestName splits a request identifier of the form
// "{name}.{command}" or "{name}.{uuid}.{command}". Computer names may
// contain dots (FQDNs), so the uuid slot is only honored when the token
// actually parses as a UUID; a malformed uuid falls back to using the name
// as the uuid.
func ParseRequestName(s string) Request {
	req := Request{}

	idx := strings.LastIndex(s, ".")
	if idx < 0 {
		req.Name, req.UUID, req.RawCmd = s, s, s
		return req
	}
	req.RawCmd = s[idx+1:]
	req.Command = ParseCommand(req.RawCmd)

	rest := s[:idx]
	if j := strings.LastIndex(rest, "."); j >= 0 {
		if candidate := rest[j+1:]; isUUID(candidate) {
			req.Name, req.UUID = rest[:j], candidate
			return req
		}
	}
	req.Name, req.UUID = rest, rest
	return req
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
