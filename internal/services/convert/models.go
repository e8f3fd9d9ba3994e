package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a Convert identifier. The API returns numbers; some endpoints echo strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(b), err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// Experience statuses accepted by the update endpoint.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusArchived  = "archived"
	StatusCompleted = "completed"
)

// Location is a URL-matching rule set that scopes experience traffic.
type Location struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Rules       LocationRules `json:"rules"`
}

type LocationRules struct {
	OR []RuleBlock `json:"OR"`
}

type RuleBlock struct {
	AND []RuleGroup `json:"AND"`
}

type RuleGroup struct {
	OrWhen []Rule `json:"OR_WHEN"`
}

type Rule struct {
	Matching Matching `json:"matching"`
	RuleType string   `json:"rule_type"`
	Value    string   `json:"value"`
}

type Matching struct {
	MatchType string `json:"match_type"`
	Negated   bool   `json:"negated"`
}

// URLMatchLocation builds a location matching exactly one URL.
func URLMatchLocation(name, description, url string) Location {
	return Location{
		Name:        name,
		Description: description,
		Rules: LocationRules{OR: []RuleBlock{{AND: []RuleGroup{{OrWhen: []Rule{{
			Matching: Matching{MatchType: "matches", Negated: false},
			RuleType: "url",
			Value:    url,
		}}}}}}},
	}
}

// ExperienceInput is the experiences/add payload.
type ExperienceInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Type        string           `json:"type"`
	Status      string           `json:"status"`
	URL         string           `json:"url"`
	Locations   []ID             `json:"locations"`
	Variations  []VariationInput `json:"variations"`
}

type VariationInput struct {
	Name    string   `json:"name"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Type string       `json:"type"`
	Data RedirectData `json:"data"`
}

type RedirectData struct {
	OriginalPattern  string `json:"original_pattern"`
	VariationPattern string `json:"variation_pattern"`
}

// RedirectVariation builds a split-URL arm redirecting from one URL to another.
func RedirectVariation(name, fromURL, toURL string) VariationInput {
	return VariationInput{
		Name: name,
		Changes: []Change{{
			Type: "defaultRedirect",
			Data: RedirectData{OriginalPattern: fromURL, VariationPattern: toURL},
		}},
	}
}

// Experience is an experience as returned by the API.
type Experience struct {
	ID         ID          `json:"id"`
	Name       string      `json:"name"`
	Status     string      `json:"status"`
	Variations []Variation `json:"variations"`
}

type Variation struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// GoalReport is one goal of an aggregated report, validated.
type GoalReport struct {
	GoalID     string
	Variations []VariationReport
}

// VariationReport is one arm's conversion data for a goal.
type VariationReport struct {
	ID             string
	Name           string
	IsBaseline     bool
	ConversionRate float64
	Significant    bool
}

// Raw report shape. Pointers distinguish missing fields from zero values.
type reportResponse struct {
	Data *struct {
		ReportData []rawGoal `json:"reportData"`
	} `json:"data"`
}

type rawGoal struct {
	GoalID     *ID            `json:"goal_id"`
	Variations []rawVariation `json:"variations"`
}

type rawVariation struct {
	ID             *ID    `json:"id"`
	Name           string `json:"name"`
	IsBaseline     *bool  `json:"is_baseline"`
	ConversionData *struct {
		ConversionRate           *float64 `json:"conversion_rate"`
		StatisticallySignificant *bool    `json:"statistically_significant"`
	} `json:"conversion_data"`
}

// parseReport validates a raw aggregated report and rejects any missing required field.
func parseReport(body []byte) ([]GoalReport, error) {
	var raw reportResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("report is not valid JSON: %w", err)
	}
	if raw.Data == nil || raw.Data.ReportData == nil {
		return nil, fmt.Errorf("report is missing data.reportData")
	}

	goals := make([]GoalReport, 0, len(raw.Data.ReportData))
	for i, g := range raw.Data.ReportData {
		if g.GoalID == nil || *g.GoalID == "" {
			return nil, fmt.Errorf("report goal %d is missing goal_id", i)
		}
		goal := GoalReport{GoalID: g.GoalID.String()}
		baselines := 0
		for j, v := range g.Variations {
			if v.ID == nil || *v.ID == "" {
				return nil, fmt.Errorf("goal %s variation %d is missing id", goal.GoalID, j)
			}
			if v.IsBaseline == nil {
				return nil, fmt.Errorf("goal %s variation %s is missing is_baseline", goal.GoalID, *v.ID)
			}
			if v.ConversionData == nil || v.ConversionData.ConversionRate == nil {
				return nil, fmt.Errorf("goal %s variation %s is missing conversion_rate", goal.GoalID, *v.ID)
			}
			significant := false
			if v.ConversionData.StatisticallySignificant != nil {
				significant = *v.ConversionData.StatisticallySignificant
			}
			if *v.IsBaseline {
				baselines++
			}
			goal.Variations = append(goal.Variations, VariationReport{
				ID:             v.ID.String(),
				Name:           v.Name,
				IsBaseline:     *v.IsBaseline,
				ConversionRate: *v.ConversionData.ConversionRate,
				Significant:    significant,
			})
		}
		if baselines != 1 {
			return nil, fmt.Errorf("goal %s has %d baseline variations, want 1", goal.GoalID, baselines)
		}
		goals = append(goals, goal)
	}
	return goals, nil
}
