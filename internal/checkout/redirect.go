package checkout

import (
	"html/template"
	"io"
	"net/http"
)

// Redirect is the terminal navigation to the payment provider: the browser
// must POST the token as token_ws to URL.
type Redirect struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

var redirectTemplate = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html lang="es">
<head><meta charset="utf-8"><title>Redirigiendo al pago</title></head>
<body onload="document.forms[0].submit()">
<form method="POST" action="{{.URL}}">
<input type="hidden" name="token_ws" value="{{.Token}}">
<noscript><button type="submit">Continuar al pago</button></noscript>
</form>
</body>
</html>
`))

// Render writes the auto-submitting form.
func (r *Redirect) Render(w io.Writer) error {
	return redirectTemplate.Execute(w, r)
}

// ServeHTTP answers with the form as the response body.
func (r *Redirect) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = r.Render(w)
}
