package experiment

import (
	"context"

	"golang.org/x/sync/errgroup"

	"crosplit/internal/models"
)

type ReconcileResult struct {
	ExperienceID string                  `json:"experience_id"`
	LocalStatus  models.ExperimentStatus `json:"local_status"`
	RemoteStatus string                  `json:"remote_status,omitempty"`
	Updated      bool                    `json:"updated"`
	Error        string                  `json:"error,omitempty"`
}

var knownStatuses = map[string]models.ExperimentStatus{
	string(models.ExperimentStatusActive):    models.ExperimentStatusActive,
	string(models.ExperimentStatusPaused):    models.ExperimentStatusPaused,
	string(models.ExperimentStatusArchived):  models.ExperimentStatusArchived,
	string(models.ExperimentStatusCompleted): models.ExperimentStatusCompleted,
}

// Reconcile compares every open experiment with its remote status and adopts
// the remote one when they drifted apart.
func (c *Coordinator) Reconcile(ctx context.Context, settings models.Setting) ([]ReconcileResult, error) {
	api, err := c.newConvert(settings)
	if err != nil {
		return nil, err
	}

	experiments, err := c.store.ListExperiments(ctx,
		models.ExperimentStatusActive,
		models.ExperimentStatusPaused,
		models.ExperimentStatusArchived,
	)
	if err != nil {
		return nil, err
	}

	results := make([]ReconcileResult, len(experiments))
	g, gctx := errgroup.WithContext(ctx)
	for i := range experiments {
		i, exp := i, experiments[i]
		g.Go(func() error {
			results[i] = ReconcileResult{ExperienceID: exp.ExperienceID, LocalStatus: exp.Status}
			remote, err := api.GetExperience(gctx, exp.ExperienceID)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].RemoteStatus = remote.Status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Writes happen after the fan-out so the store sees one writer.
	for i := range results {
		r := &results[i]
		if r.Error != "" || r.RemoteStatus == "" {
			continue
		}
		status, ok := knownStatuses[r.RemoteStatus]
		if !ok {
			c.logger.Warn("experience %s has unknown remote status %q", r.ExperienceID, r.RemoteStatus)
			continue
		}
		if status == r.LocalStatus {
			continue
		}
		if err := c.store.UpdateExperimentStatus(ctx, r.ExperienceID, status); err != nil {
			r.Error = err.Error()
			continue
		}
		r.Updated = true
		c.logger.Info("experience %s status %s -> %s", r.ExperienceID, r.LocalStatus, status)
	}
	return results, nil
}
