package report

import (
	"bytes"
	"html/template"
	"time"

	"github.com/meridian-esg/meridian/internal/authz"
)

// reviewTemplate renders an access review snapshot as a printable page.
// Gotenberg turns the HTML into the final PDF.
var reviewTemplate = template.Must(template.New("access-review").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Access Review — {{.OrganizationName}}</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; margin: 2.5rem; color: #1a1a1a; }
  h1 { font-size: 1.4rem; margin-bottom: 0; }
  .meta { color: #555; font-size: 0.85rem; margin-bottom: 2rem; }
  table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
  th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; font-size: 0.9rem; }
  th { background: #f0f4f0; }
  .totals { margin-top: 1.5rem; font-size: 0.9rem; }
  .totals span { display: inline-block; margin-right: 2rem; }
  .totals strong { font-size: 1.2rem; }
</style>
</head>
<body>
<h1>Access Review — {{.OrganizationName}}</h1>
<div class="meta">Organization {{.OrganizationID}} · generated {{.GeneratedAt}}</div>
<div class="totals">
  <span><strong>{{.DistinctUsers}}</strong> users with access</span>
  <span><strong>{{.ActiveOverrides}}</strong> active overrides</span>
  <span><strong>{{.ActiveDelegations}}</strong> active delegations</span>
</div>
<table>
  <thead><tr><th>Role</th><th>Active assignments</th></tr></thead>
  <tbody>
  {{range .Assignments}}<tr><td>{{.RoleName}}</td><td>{{.Count}}</td></tr>
  {{else}}<tr><td colspan="2">No active role assignments</td></tr>
  {{end}}</tbody>
</table>
</body>
</html>
`))

type reviewView struct {
	OrganizationID    string
	OrganizationName  string
	GeneratedAt       string
	DistinctUsers     int64
	ActiveOverrides   int64
	ActiveDelegations int64
	Assignments       []authz.RoleTally
}

// ReviewHTML renders the snapshot into the HTML document sent to Gotenberg.
func ReviewHTML(snap authz.AccessReviewSnapshot) (string, error) {
	name := snap.Summary.OrganizationName
	if name == "" {
		name = snap.OrganizationID.String()
	}
	view := reviewView{
		OrganizationID:    snap.OrganizationID.String(),
		OrganizationName:  name,
		GeneratedAt:       snap.GeneratedAt.UTC().Format(time.RFC1123),
		DistinctUsers:     snap.Summary.DistinctUsers,
		ActiveOverrides:   snap.Summary.ActiveOverrides,
		ActiveDelegations: snap.Summary.ActiveDelegations,
		Assignments:       snap.Summary.Assignments,
	}
	var buf bytes.Buffer
	if err := reviewTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
