package notification

import "html/template"

var successTemplate = template.Must(template.New("sync_success").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933;">
  <h2 style="color: #2e7d32;">Catalog sync completed</h2>
  <p>The scheduled sync for <strong>{{.StoreName}}</strong> finished successfully.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td>Products processed</td><td><strong>{{.ItemsTotal}}</strong></td></tr>
    <tr><td>Synced</td><td>{{.ItemsSynced}}</td></tr>
    <tr><td>Duration</td><td>{{.Duration}}</td></tr>
    <tr><td>Finished at</td><td>{{.FinishedAt}}</td></tr>
  </table>
  {{if .DashboardURL}}<p><a href="{{.DashboardURL}}">Open sync history</a></p>{{end}}
</body>
</html>`))

var failureTemplate = template.Must(template.New("sync_failure").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933;">
  <h2 style="color: #c62828;">Catalog sync {{if eq .Status "PARTIAL"}}partially failed{{else}}failed{{end}}</h2>
  <p>The sync for <strong>{{.StoreName}}</strong> did not complete cleanly.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td>Status</td><td><strong>{{.Status}}</strong></td></tr>
    <tr><td>Products processed</td><td>{{.ItemsTotal}}</td></tr>
    <tr><td>Synced</td><td>{{.ItemsSynced}}</td></tr>
    <tr><td>Failed</td><td>{{.ItemsFailed}}</td></tr>
    <tr><td>Duration</td><td>{{.Duration}}</td></tr>
    <tr><td>Finished at</td><td>{{.FinishedAt}}</td></tr>
  </table>
  {{if .ErrorLog}}<h3>Errors</h3>
  <pre style="background: #f5f5f5; padding: 12px; white-space: pre-wrap;">{{.ErrorLog}}</pre>{{end}}
  {{if .DashboardURL}}<p><a href="{{.DashboardURL}}">Open sync history</a></p>{{end}}
</body>
</html>`))
