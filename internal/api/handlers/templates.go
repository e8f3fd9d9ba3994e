package handlers

import (
	"html/template"

	"crosplit/internal/apperr"
)

const approvalTemplateName = "approve"

// Templates holds the server-rendered pages. Register with gin's SetHTMLTemplate.
var Templates = template.Must(template.New(approvalTemplateName).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Approve Winning Variant</title></head>
<body>
{{if .Approved}}
  <p>Success: Winning variant approved.</p>
{{else if and .Error (not .GoalID)}}
  <p>Error: {{.Error}}</p>
{{else}}
  <h1>Approve Winning Variant</h1>
  {{if .Error}}<p>Error: {{.Error}}</p>{{end}}
  <p>Are you sure you want to approve variant <strong>{{.VariantID}}</strong> for goal <strong>{{.GoalID}}</strong>?</p>
  <form method="post">
    <input type="hidden" name="goalId" value="{{.GoalID}}">
    <input type="hidden" name="variantId" value="{{.VariantID}}">
    <input type="hidden" name="experienceId" value="{{.ExperienceID}}">
    <button type="submit">Approve</button>
  </form>
{{end}}
</body>
</html>`))

func statusFor(err error) int {
	return apperr.HTTPStatus(err)
}
