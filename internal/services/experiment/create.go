package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"crosplit/internal/apperr"
	"crosplit/internal/models"
	"crosplit/internal/services/ai"
	"crosplit/internal/services/convert"
	"crosplit/internal/services/notify"
	"crosplit/internal/services/shopify"
)

const (
	experimentNamePrefix  = "CRO Page Split Test "
	variationNamePrefix   = "Variation for page handle "
	locationDescription   = "Original URL of the experience"
	experienceDescription = "Testing different Shopify Page designs across multiple URLs"
	experienceTypeSplit   = "split_url"
)

// CreateRequest is one duplication batch for an original page.
type CreateRequest struct {
	Original    shopify.Page
	Body        string
	Suggestions []ai.Suggestion
}

// PageResult is the outcome of one suggestion. Results keep input order.
type PageResult struct {
	Title   string `json:"title"`
	Handle  string `json:"handle"`
	Success bool   `json:"success"`
	PageID  string `json:"page_id,omitempty"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`

	duplicate *models.DuplicatePage
}

type CreateResult struct {
	Results    []PageResult       `json:"results"`
	Experiment *models.Experiment `json:"experiment,omitempty"`
}

// Created counts successful results.
func (r *CreateResult) Created() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}
	return n
}

// CreateDuplicatesAndExperiment creates one duplicate page per suggestion and,
// when at least one succeeds, registers a split-URL experience over them.
// Per-suggestion failures are reported in the result, not returned as errors.
func (c *Coordinator) CreateDuplicatesAndExperiment(ctx context.Context, pages PageService, settings models.Setting, req CreateRequest) (*CreateResult, error) {
	if len(req.Suggestions) == 0 {
		return nil, apperr.UserInput("at least one suggestion is required")
	}
	if req.Original.ID == 0 || req.Original.Handle == "" {
		return nil, apperr.UserInput("original page is required")
	}

	api, err := c.newConvert(settings)
	if err != nil {
		return nil, err
	}

	original := shopify.ToOriginalPage(&req.Original)
	if err := c.ensureNoOpenExperiment(ctx, original.PageID); err != nil {
		return nil, err
	}

	body := req.Body
	if body == "" {
		body = req.Original.BodyHTML
	}

	log := c.logger.With("shop", pages.ShopDomain(), "original", original.Handle)

	var originalRow *models.OriginalPage
	result := &CreateResult{Results: make([]PageResult, 0, len(req.Suggestions))}
	for _, s := range req.Suggestions {
		res := c.createDuplicate(ctx, pages, settings, original.TemplateSuffix, body, s)
		if res.Success {
			row, err := c.persistDuplicate(ctx, original, &originalRow, res)
			if err != nil {
				log.Error("page %s created but not saved: %v", res.Handle, err)
				res.Success = false
				res.Error = fmt.Sprintf("page created but not saved: %v", err)
			} else {
				res.duplicate = row
			}
		}
		result.Results = append(result.Results, res)
	}

	if result.Created() == 0 {
		log.Warn("no duplicate pages created, skipping experiment registration")
		return result, nil
	}

	experiment, err := c.registerExperiment(ctx, api, pages.ShopDomain(), settings, originalRow, result.Results)
	if err != nil {
		return result, err
	}
	result.Experiment = experiment

	log.Info("registered experience %s with %d variations", experiment.ExperienceID, len(experiment.Variants))
	c.notify(ctx, func(to []string) (notify.Message, error) {
		links := make([]notify.VariantLink, 0, len(experiment.Variants))
		for _, v := range experiment.Variants {
			links = append(links, notify.VariantLink{Name: v.Name, URL: v.URL})
		}
		return notify.ExperienceCreatedMessage(to, notify.ExperienceCreated{
			Name:         experiment.Name,
			ExperienceID: experiment.ExperienceID,
			Variants:     links,
		})
	}, settings)

	return result, nil
}

func (c *Coordinator) ensureNoOpenExperiment(ctx context.Context, pageGID string) error {
	existing, err := c.store.GetOriginalPageByPageID(ctx, pageGID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	open, err := c.store.GetOpenExperimentForPage(ctx, existing.ID)
	if err != nil {
		return err
	}
	if open != nil {
		return apperr.Conflict("page %s already has experiment %s in status %s", existing.Handle, open.ExperienceID, open.Status)
	}
	return nil
}

// createDuplicate creates a single page. It never returns an error; failures are recorded.
func (c *Coordinator) createDuplicate(ctx context.Context, pages PageService, settings models.Setting, templateSuffix, body string, s ai.Suggestion) PageResult {
	res := PageResult{Title: strings.TrimSpace(s.Title), Handle: strings.TrimSpace(s.Handle)}
	if res.Title == "" || res.Handle == "" {
		res.Error = "title and handle are required"
		return res
	}

	taken, err := pages.HandleTaken(ctx, res.Handle)
	if err != nil {
		res.Error = fmt.Sprintf("handle lookup failed: %v", err)
		return res
	}
	if taken {
		res.Error = fmt.Sprintf("handle %q is already in use", res.Handle)
		return res
	}

	input := shopify.PageInput{Title: res.Title, Handle: res.Handle, BodyHTML: body}
	if templateSuffix != "" {
		input.TemplateSuffix = &templateSuffix
	}
	page, err := pages.CreatePage(ctx, input)
	if err != nil {
		res.Error = err.Error()
		if payload := apperr.PayloadOf(err); payload != "" {
			res.Error = payload
		}
		return res
	}

	if err := pages.CreateMetafield(ctx, shopify.HeadingMetafield(page.ID, res.Title)); err != nil {
		c.logger.Warn("failed to set heading metafield on page %d: %v", page.ID, err)
	}

	// Shopify may normalise the handle.
	res.Handle = page.Handle
	res.Success = true
	res.PageID = page.GID()
	res.URL = settings.PageURL(pages.ShopDomain(), page.Handle)
	res.duplicate = &models.DuplicatePage{
		PageID:   page.GID(),
		Title:    page.Title,
		Handle:   page.Handle,
		BodyHTML: page.BodyHTML,
	}
	return res
}

// persistDuplicate upserts the original row once per batch, then the duplicate row.
func (c *Coordinator) persistDuplicate(ctx context.Context, original models.OriginalPage, originalRow **models.OriginalPage, res PageResult) (*models.DuplicatePage, error) {
	if *originalRow == nil {
		row, err := c.store.UpsertOriginalPage(ctx, original)
		if err != nil {
			return nil, err
		}
		*originalRow = row
	}
	dup := *res.duplicate
	dup.OriginalPageID = (*originalRow).ID
	return c.store.UpsertDuplicatePage(ctx, dup)
}

type arm struct {
	name    string
	url     string
	changes []convert.Change
}

// registerExperiment creates the location and experience remotely, then
// persists the experiment with its variants. Nothing is persisted unless
// every remote step returned the ids it should.
func (c *Coordinator) registerExperiment(ctx context.Context, api ExperienceAPI, shop string, settings models.Setting, original *models.OriginalPage, results []PageResult) (*models.Experiment, error) {
	originalURL := settings.PageURL(shop, original.Handle)
	name := experimentNamePrefix + original.Handle

	locationID, err := api.AddLocation(ctx, convert.URLMatchLocation(name, locationDescription, originalURL))
	if err != nil {
		return nil, err
	}

	base := convert.RedirectVariation(models.OriginalVariantName, originalURL, originalURL)
	arms := []arm{{name: base.Name, url: originalURL, changes: base.Changes}}
	for _, res := range results {
		if !res.Success {
			continue
		}
		v := convert.RedirectVariation(variationNamePrefix+res.Handle, originalURL, res.URL)
		arms = append(arms, arm{name: v.Name, url: res.URL, changes: v.Changes})
	}

	input := convert.ExperienceInput{
		Name:        name,
		Description: experienceDescription,
		Type:        experienceTypeSplit,
		Status:      convert.StatusActive,
		URL:         originalURL,
		Locations:   []convert.ID{locationID},
	}
	for _, a := range arms {
		input.Variations = append(input.Variations, convert.VariationInput{Name: a.name, Changes: a.changes})
	}

	created, err := api.AddExperience(ctx, input)
	if err != nil {
		return nil, err
	}

	experiment, err := c.recordExperience(ctx, api, created, name, locationID, original, arms)
	if err != nil {
		// The experience is live remotely with no local row; an operator has to retire it.
		c.logger.Error("experience %s created in Convert but not recorded locally: %v", created.ID, err)
		return nil, fmt.Errorf("experience %s created in Convert but not recorded: %w", created.ID, err)
	}
	return experiment, nil
}

// recordExperience fetches the created experience back for its variation ids
// and persists the experiment with one variant per arm.
func (c *Coordinator) recordExperience(ctx context.Context, api ExperienceAPI, created *convert.Experience, name string, locationID convert.ID, original *models.OriginalPage, arms []arm) (*models.Experiment, error) {
	fetched, err := api.GetExperience(ctx, created.ID.String())
	if err != nil {
		return nil, err
	}

	byName := make(map[string]convert.Variation, len(fetched.Variations))
	for _, v := range fetched.Variations {
		byName[v.Name] = v
	}

	variants := make([]models.Variant, 0, len(arms))
	for _, a := range arms {
		remote, ok := byName[a.name]
		if !ok {
			return nil, apperr.Upstream("convert", 0, "", fmt.Errorf("experience %s is missing variation %q", created.ID, a.name))
		}
		changes, err := json.Marshal(a.changes)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal changes: %w", err)
		}
		variants = append(variants, models.Variant{
			VariantID: remote.ID.String(),
			Name:      a.name,
			URL:       a.url,
			Changes:   datatypes.JSON(changes),
		})
	}

	experimentName := created.Name
	if experimentName == "" {
		experimentName = name
	}
	experiment := &models.Experiment{
		ExperienceID:   created.ID.String(),
		LocationID:     locationID.String(),
		Name:           experimentName,
		OriginalPageID: original.ID,
		Status:         models.ExperimentStatusActive,
	}
	if err := c.store.CreateExperiment(ctx, experiment, variants); err != nil {
		return nil, err
	}
	return experiment, nil
}
