package experiment

import (
	"context"
	"net/url"

	"golang.org/x/sync/errgroup"

	"crosplit/internal/models"
	"crosplit/internal/services/convert"
	"crosplit/internal/services/notify"
)

type Winner struct {
	VariantID      string  `json:"variant_id"`
	Name           string  `json:"name"`
	ConversionRate float64 `json:"conversion_rate"`
	BaselineRate   float64 `json:"baseline_rate"`
}

type GoalSignificance struct {
	GoalID                   string  `json:"goal_id"`
	StatisticallySignificant bool    `json:"statistically_significant"`
	Winner                   *Winner `json:"winner,omitempty"`
	ApproveURL               string  `json:"approve_url,omitempty"`
}

type ExperimentSignificance struct {
	ExperienceID string             `json:"experience_id"`
	Name         string             `json:"name"`
	PageHandle   string             `json:"page_handle"`
	Goals        []GoalSignificance `json:"goals"`
	Notified     int                `json:"notified"`
	Error        string             `json:"error,omitempty"`
}

type SweepResult struct {
	Experiments []ExperimentSignificance `json:"experiments"`
}

// PickWinner returns the significant non-baseline variation with the highest
// conversion rate that beats the baseline, or nil. Ties keep the first one.
func PickWinner(goal convert.GoalReport) *Winner {
	var baseline *convert.VariationReport
	for i := range goal.Variations {
		if goal.Variations[i].IsBaseline {
			baseline = &goal.Variations[i]
			break
		}
	}
	if baseline == nil {
		return nil
	}

	var best *convert.VariationReport
	for i := range goal.Variations {
		v := &goal.Variations[i]
		if v.IsBaseline || !v.Significant || v.ConversionRate <= baseline.ConversionRate {
			continue
		}
		if best == nil || v.ConversionRate > best.ConversionRate {
			best = v
		}
	}
	if best == nil {
		return nil
	}
	return &Winner{
		VariantID:      best.ID,
		Name:           best.Name,
		ConversionRate: best.ConversionRate,
		BaselineRate:   baseline.ConversionRate,
	}
}

// ApproveURL builds the link the approval email points at.
func (c *Coordinator) ApproveURL(goalID, variantID, experienceID string) string {
	q := url.Values{}
	q.Set("goalId", goalID)
	q.Set("variantId", variantID)
	q.Set("experienceId", experienceID)
	return c.appURL + "/app/variant/approve?" + q.Encode()
}

// EvaluateSignificance fetches the report of every active experiment
// concurrently and emails an approval request per goal with a winner.
// A failing report is recorded on its experiment and does not stop the sweep.
func (c *Coordinator) EvaluateSignificance(ctx context.Context, settings models.Setting) (*SweepResult, error) {
	api, err := c.newConvert(settings)
	if err != nil {
		return nil, err
	}

	pages, err := c.store.ExperimentsWithPages(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]ExperimentSignificance, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	for i := range pages {
		i, page := i, pages[i]
		g.Go(func() error {
			results[i] = c.evaluateOne(gctx, api, settings, page)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Info("significance sweep checked %d experiments", len(results))
	return &SweepResult{Experiments: results}, nil
}

func (c *Coordinator) evaluateOne(ctx context.Context, api ExperienceAPI, settings models.Setting, page models.OriginalPage) ExperimentSignificance {
	exp := page.Experiment
	out := ExperimentSignificance{
		ExperienceID: exp.ExperienceID,
		Name:         exp.Name,
		PageHandle:   page.Handle,
		Goals:        []GoalSignificance{},
	}

	goals, err := api.AggregatedReport(ctx, exp.ExperienceID)
	if err != nil {
		c.logger.Error("failed to fetch report for experience %s: %v", exp.ExperienceID, err)
		out.Error = err.Error()
		return out
	}

	for _, goal := range goals {
		gs := GoalSignificance{GoalID: goal.GoalID, Winner: PickWinner(goal)}
		if gs.Winner != nil {
			gs.StatisticallySignificant = true
			gs.ApproveURL = c.ApproveURL(goal.GoalID, gs.Winner.VariantID, exp.ExperienceID)
			winner := *gs.Winner
			approveURL := gs.ApproveURL
			if c.notify(ctx, func(to []string) (notify.Message, error) {
				return notify.WinnerFoundMessage(to, notify.WinnerFound{
					ExperienceName: exp.Name,
					ExperienceID:   exp.ExperienceID,
					GoalID:         goal.GoalID,
					VariantID:      winner.VariantID,
					VariantName:    winner.Name,
					ConversionRate: winner.ConversionRate,
					BaselineRate:   winner.BaselineRate,
					ApproveURL:     approveURL,
				})
			}, settings) {
				out.Notified++
			}
		}
		out.Goals = append(out.Goals, gs)
	}
	return out
}
