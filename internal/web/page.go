package web

import (
	"html/template"

	"github.com/KaramelBytes/insightloom/internal/render"
)

type pageData struct {
	Title      string
	Accept     string
	Flash      *flash
	FileName   string
	Columns    []string
	Preview    [][]string
	TotalRows  int
	HasTable   bool
	Query      string
	Intent     string
	View       *render.View
	MaxUploadM int64
}

var page = template.Must(template.New("page").Parse(pageHTML))

const pageHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{.Title}}</title>
  <style>
    body { font-family: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Helvetica, Arial; margin: 0; background: #f7f7f9; color: #1d1d1f; }
    main { max-width: 1200px; margin: 0 auto; padding: 24px; }
    h1 { font-size: 1.6rem; }
    .card { background: #fff; border: 1px solid #e3e3e8; border-radius: 8px; padding: 16px; margin-bottom: 16px; }
    .flash { padding: 10px 12px; border-radius: 6px; margin-top: 12px; }
    .flash.success { background: #e7f6ec; color: #1e6b35; }
    .flash.info { background: #e8f0fe; color: #1a4fa0; }
    .flash.warning { background: #fff5e0; color: #8a5a00; }
    .flash.error { background: #fde8e8; color: #9b1c1c; }
    .scroll { overflow: auto; max-height: 420px; }
    table { border-collapse: collapse; font-size: 0.9rem; width: 100%; }
    th, td { border-bottom: 1px solid #eee; padding: 4px 8px; text-align: left; white-space: nowrap; }
    th { position: sticky; top: 0; background: #fafafa; }
    .tabs input[type=radio] { display: none; }
    .tabs label.tab { display: inline-block; padding: 8px 14px; cursor: pointer; border-bottom: 2px solid transparent; }
    .tabs input:checked + label.tab { border-bottom-color: #ff4b4b; font-weight: 600; }
    .panel { display: none; padding-top: 12px; }
    #tab-visual:checked ~ .panel.visual, #tab-text:checked ~ .panel.text { display: block; }
    textarea { width: 100%; min-height: 80px; font: inherit; padding: 8px; box-sizing: border-box; }
    button { margin-top: 8px; padding: 8px 14px; border: 0; border-radius: 6px; background: #ff4b4b; color: #fff; cursor: pointer; }
    .answer { background: #e7f6ec; color: #1e6b35; padding: 12px; border-radius: 6px; }
    iframe.chart { width: 100%; height: 540px; border: 0; }
    pre { background: #f4f4f6; padding: 12px; overflow: auto; }
    .muted { color: #777; font-size: 0.85rem; }
  </style>
</head>
<body>
<main>
  <h1>Generate Visual &amp; Textual Insights</h1>

  <section class="card">
    <form method="post" action="/upload" enctype="multipart/form-data">
      <label for="file">Upload your CSV or Excel file</label><br />
      <input id="file" type="file" name="file" accept="{{.Accept}}" />
      <button type="submit">Upload</button>
      <span class="muted">Limit {{.MaxUploadM}}MB per file</span>
    </form>
    {{with .Flash}}<div class="flash {{.Level}}">{{.Text}}</div>{{end}}
  </section>

  {{if .HasTable}}
  <section class="card">
    <div class="muted">{{.FileName}}: {{.TotalRows}} rows, {{len .Columns}} columns{{if lt (len .Preview) .TotalRows}} (first {{len .Preview}} shown){{end}}</div>
    <div class="scroll">
      <table>
        <thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
        <tbody>{{range .Preview}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody>
      </table>
    </div>
    <form method="post" action="/reset"><button type="submit">Clear</button></form>
  </section>

  <section class="card tabs">
    <input type="radio" name="tab" id="tab-visual" {{if ne .Intent "textual"}}checked{{end}} /><label class="tab" for="tab-visual">Visual Insights</label>
    <input type="radio" name="tab" id="tab-text" {{if eq .Intent "textual"}}checked{{end}} /><label class="tab" for="tab-text">Text Analysis</label>

    <div class="panel visual">
      <form method="post" action="/ask">
        <input type="hidden" name="intent" value="visual" />
        <label for="visual-query">Ask for visual insights</label>
        <textarea id="visual-query" name="query" placeholder="E.g. Show total sales by country as a bar chart">{{if ne .Intent "textual"}}{{.Query}}{{end}}</textarea>
        <button type="submit">Generate Visualization</button>
      </form>
    </div>
    <div class="panel text">
      <form method="post" action="/ask">
        <input type="hidden" name="intent" value="textual" />
        <label for="text-query">Ask for text-based analysis</label>
        <textarea id="text-query" name="query" placeholder="E.g. What's the average sales value? Summarize key trends in the data.">{{if eq .Intent "textual"}}{{.Query}}{{end}}</textarea>
        <button type="submit">Get Text Analysis</button>
      </form>
    </div>
  </section>
  {{end}}

  <section class="card" id="results">
    {{with .View}}
      {{if .Warning}}<div class="flash warning">{{.Warning}}</div>{{end}}
      {{if .Heading}}<h3>{{.Heading}}:</h3>{{end}}
      {{if .Answer}}<div class="answer">{{.Answer}}</div>{{end}}
      {{if .Columns}}
      <div class="scroll">
        <table>
          <thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
          <tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody>
        </table>
      </div>
      {{end}}
      {{if .ChartHTML}}<iframe class="chart" title="{{.ChartTitle}}" srcdoc="{{.ChartHTML}}"></iframe>{{end}}
      {{if .ChartPath}}<div class="muted">Saved to {{.ChartPath}}</div>{{end}}
      {{if .HasCode}}
      <details>
        <summary>Code used by the model</summary>
        <pre><code>{{.Code}}</code></pre>
      </details>
      {{end}}
    {{else}}
      {{if not .HasTable}}<div class="flash info">Please upload a CSV or Excel file to start.</div>{{end}}
    {{end}}
  </section>
</main>
</body>
</html>
`
