package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var experienceCreatedTmpl = template.Must(template.New("experience_created").Parse(`<p>Hello,</p>
<p>A new Convert experience named <strong>{{.Name}}</strong> has been successfully created.</p>
<p>Experience ID: <strong>{{.ExperienceID}}</strong></p>
{{if .Variants}}<ul>{{range .Variants}}
<li>{{.Name}}: <a href="{{.URL}}">{{.URL}}</a></li>{{end}}
</ul>{{end}}
<p>You can now manage or review it in your Convert dashboard.</p>`))

var winnerFoundTmpl = template.Must(template.New("winner_found").Parse(`<p>Experience <strong>{{.ExperienceName}}</strong> has a statistically significant winner for goal {{.GoalID}}.</p>
<p>The winning variant is: <strong>{{.VariantName}}</strong> with a conversion rate of {{printf "%.2f" .ConversionRate}}% (baseline {{printf "%.2f" .BaselineRate}}%).</p>
<p><a href="{{.ApproveURL}}" style="display:inline-block;padding:10px 15px;background:#007bff;color:#fff;text-decoration:none;border-radius:5px;">Approve Variant</a></p>`))

type VariantLink struct {
	Name string
	URL  string
}

type ExperienceCreated struct {
	Name         string
	ExperienceID string
	Variants     []VariantLink
}

type WinnerFound struct {
	ExperienceName string
	ExperienceID   string
	GoalID         string
	VariantID      string
	VariantName    string
	ConversionRate float64
	BaselineRate   float64
	ApproveURL     string
}

// ExperienceCreatedMessage renders the "new experience" email.
func ExperienceCreatedMessage(to []string, data ExperienceCreated) (Message, error) {
	html, err := render(experienceCreatedTmpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:      KindExperienceCreated,
		To:        to,
		Subject:   "New Convert Experience Created",
		HTML:      html,
		Timestamp: time.Now().UTC(),
	}, nil
}

// WinnerFoundMessage renders the approval request email.
func WinnerFoundMessage(to []string, data WinnerFound) (Message, error) {
	html, err := render(winnerFoundTmpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:      KindWinnerFound,
		To:        to,
		Subject:   "Winning Variant Ready for Approval",
		HTML:      html,
		Timestamp: time.Now().UTC(),
	}, nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
