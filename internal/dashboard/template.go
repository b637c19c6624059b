package dashboard

import "html/template"

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8" />
<meta name="viewport" content="width=device-width, initial-scale=1.0" />
<title>RTCMAS-IC Dashboard</title>
<style>
body { font-family: Arial, sans-serif; margin: 0; background: #f5f7fb; color: #1a2433; }
header { background: #0d2a4c; color: white; padding: 1rem 1.5rem; }
.container { padding: 1.2rem 1.5rem; }
.grid { display: grid; grid-template-columns: repeat(4, minmax(0, 1fr)); gap: 1rem; margin-bottom: 1rem; }
.card { background: white; border-radius: 10px; padding: 1rem; box-shadow: 0 2px 10px rgba(0,0,0,0.08); }
.card h3 { margin: 0; color: #345; font-size: .9rem; }
.metric { margin-top: .45rem; font-size: 1.6rem; font-weight: 700; }
table { width: 100%; border-collapse: collapse; background: white; }
th, td { padding: .6rem .5rem; border-bottom: 1px solid #e6ebf2; font-size: .9rem; text-align: left; }
th { background: #1f4876; color: white; }
.pill { border-radius: 999px; padding: .15rem .45rem; font-size: .8rem; color: white; }
.low { background: #5d8f3b; } .medium { background: #b88713; } .high { background: #bf5400; } .critical { background: #b00020; }
.sections { display: grid; grid-template-columns: 1fr 1fr; gap: 1rem; margin-bottom: 1rem; }
code { font-size: .75rem; }
</style>
</head>
<body>
<header>
  <h1>RTCMAS-IC National Threat Monitoring Dashboard</h1>
  <div>Edge scoring, federated summary, hash-chained incident ledger and automated containment</div>
</header>
<div class="container">
  <div class="grid">
    <div class="card"><h3>Total Incidents</h3><div class="metric">{{.Metrics.TotalIncidents}}</div></div>
    <div class="card"><h3>High-Risk Incidents</h3><div class="metric">{{.Metrics.HighRiskIncidents}}</div></div>
    <div class="card"><h3>Auto Containment Actions</h3><div class="metric">{{.Metrics.AutoContainment}}</div></div>
    <div class="card"><h3>Unique Sources</h3><div class="metric">{{.Metrics.UniqueSources}}</div></div>
  </div>
  <div class="sections">
    <div class="card"><h3>Incidents by Severity</h3><ul>{{range .BySeverity}}<li><strong>{{.Key}}</strong>: {{.Count}}</li>{{end}}</ul></div>
    <div class="card"><h3>Incidents by Region</h3><ul>{{range .ByRegion}}<li><strong>{{.Key}}</strong>: {{.Count}}</li>{{end}}</ul></div>
  </div>
  <div class="card">
    <h3>Incident Stream</h3>
    <table>
      <thead><tr><th>ID</th><th>Timestamp</th><th>Source</th><th>Region</th><th>Type</th><th>Severity</th><th>Risk</th><th>Action</th><th>Block</th></tr></thead>
      <tbody>
      {{range .Incidents}}<tr><td>{{.ID}}</td><td>{{.Timestamp}}</td><td>{{.Source}}</td><td>{{.Region}}</td><td>{{.EventType}}</td><td><span class="pill {{.Severity}}">{{.Severity}}</span></td><td>{{.RiskScore}}</td><td>{{.Action}}</td><td><code>#{{.LedgerIndex}}</code></td></tr>
      {{end}}
      </tbody>
    </table>
  </div>
</div>
</body>
</html>`))
