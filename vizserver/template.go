package vizserver

import (
	"html/template"
)

func newTemplate(s string) *template.Template {
	return template.Must(template.New("").Parse(s))
}

type indexTemplParams struct {
	Title      string
	ChartTitle string
}

var indexTempl = newTemplate(`
<!DOCTYPE html>
<html>
	<head>
		<title>{{.Title}}</title>
		<meta name="viewport" content="width=device-width, initial-scale=1.0">
		<style type="text/css">
			html, body {
				max-width: 900px;
				margin: 0 auto;
				font-family: sans-serif;
			}
			#batchInfo {
				color: #888;
			}
		</style>
		<script type="text/javascript" src="https://www.gstatic.com/charts/loader.js"></script>
		<script type="text/javascript">
			var chartTitle = {{.ChartTitle}};
		</script>
		<script type="text/javascript" src="chart.js"></script>
	</head>
	<body>
		<h1>{{.Title}}</h1>
		<div id="batchInfo"></div>
		<div id="accelerometerGraph" style="height: 500px; width: 900px"></div>
		<a href="batch.csv" download>Download batch CSV</a>
	</body>
</html>
`[1:])
