package services

import (
	"bytes"
	"html/template"
)

const verificationSubject = "Verify your email for the users app"

var verificationTemplate = template.Must(template.New("verification").Parse(`<h1>Hello {{.FirstName}} {{.LastName}}!</h1>
<b>Thanks for signing up in the users app. Click the following link to complete your verification process:</b>
<br>
<a href="{{.Link}}">{{.Link}}</a>
`))

// verificationEmail renders the subject and HTML body of the verification email.
func verificationEmail(firstName, lastName, link string) (subject, body string, err error) {
	var buf bytes.Buffer
	err = verificationTemplate.Execute(&buf, struct {
		FirstName string
		LastName  string
		Link      string
	}{firstName, lastName, link})
	if err != nil {
		return "", "", err
	}
	return verificationSubject, buf.String(), nil
}
