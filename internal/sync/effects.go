package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/migasfree/migasfree-backend/internal/domain"
	"github.com/migasfree/migasfree-backend/internal/notify"
	"github.com/migasfree/migasfree-backend/internal/store"
)

// ApplyEffects executes the post-commit effect list produced by the
// reconciler. Execution order is the decision order; a failure aborts the
// remainder so the caller sees the first broken effect.
func ApplyEffects(ctx context.Context, repos *store.Repositories, notifier notify.Notifier, effects []domain.Effect) error {
	now := time.Now()
	for _, e := range effects {
		switch eff := e.(type) {
		case domain.NotifyEffect:
			if err := notifier.Notify(ctx, eff.Message); err != nil {
				return fmt.Errorf("apply notify effect: %w", err)
			}
		case domain.ErrorEventEffect:
			err := repos.Events.AddError(ctx, &domain.ErrorEvent{
				ComputerID:  eff.ComputerID,
				ProjectID:   eff.ProjectID,
				Description: eff.Description,
				CreatedAt:   now,
			})
			if err != nil {
				return fmt.Errorf("apply error-event effect: %w", err)
			}
		case domain.MigrationEffect:
			err := repos.Events.AddMigration(ctx, &domain.Migration{
				ComputerID: eff.ComputerID,
				ProjectID:  eff.ProjectID,
				CreatedAt:  now,
			})
			if err != nil {
				return fmt.Errorf("apply migration effect: %w", err)
			}
		case domain.StatusLogEffect:
			err := repos.Events.AddStatusLog(ctx, &domain.StatusLog{
				ComputerID: eff.ComputerID,
				Status:     eff.Status,
				CreatedAt:  now,
			})
			if err != nil {
				return fmt.Errorf("apply status-log effect: %w", err)
			}
		case domain.UninstallHistoryEffect:
			if err := repos.Events.MarkPackagesUninstalled(ctx, eff.ComputerID); err != nil {
				return fmt.Errorf("apply uninstall-history effect: %w", err)
			}
		case domain.RevokeTargetingEffect:
			if err := repos.Computers.ClearTargeting(ctx, eff.ComputerID); err != nil {
				return fmt.Errorf("apply revoke-targeting effect: %w", err)
			}
		default:
			return fmt.Errorf("unhandled effect %T", e)
		}
	}
	return nil
}
