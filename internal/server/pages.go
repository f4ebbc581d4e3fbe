package server

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

func statusPage(title, detail string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>`+templ.EscapeString(title)+`</title>
<style>body{font-family:system-ui,sans-serif;margin:3rem auto;max-width:48rem;padding:0 1rem}pre{white-space:pre-wrap;background:#f6f6f6;padding:1rem}</style>
</head>
<body>
<h1>`+templ.EscapeString(title)+`</h1>
<pre>`+templ.EscapeString(detail)+`</pre>
<script type="module" src="`+DevScriptPath+`"></script>
</body>
</html>
`)
		return err
	})
}

func notFoundPage(path string) templ.Component {
	return statusPage("Not found", path)
}

func missingTemplatePage(err error) templ.Component {
	return statusPage("Not found", err.Error())
}

func errorPage(err error) templ.Component {
	return statusPage("Render error", err.Error())
}
