package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var (
	welcomeTemplate = template.Must(template.New("welcome").Parse(
		`<p>Hi {{.Username}},</p>
<p>Welcome to Online Course. Your account is ready and you can start browsing courses right away.</p>`))

	enrollmentTemplate = template.Must(template.New("enrollment").Parse(
		`<p>Hi {{.Username}},</p>
<p>Your payment of {{.Amount}} MNT was received and you are now enrolled in <b>{{.CourseTitle}}</b>.</p>
<p>Happy learning!</p>`))
)

// WelcomeData fills the welcome email
type WelcomeData struct {
	Username string
}

// EnrollmentData fills the enrollment confirmation email
type EnrollmentData struct {
	Username    string
	CourseTitle string
	Amount      int64
}

// WelcomeMessage renders the email sent after registration
func WelcomeMessage(to string, data WelcomeData) (Message, error) {
	html, err := render(welcomeTemplate, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Welcome to Online Course",
		HTML:    html,
		Text:    fmt.Sprintf("Hi %s, welcome to Online Course.", data.Username),
	}, nil
}

// EnrollmentMessage renders the email sent after a completed payment
func EnrollmentMessage(to string, data EnrollmentData) (Message, error) {
	html, err := render(enrollmentTemplate, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("You are enrolled in %s", data.CourseTitle),
		HTML:    html,
		Text:    fmt.Sprintf("Hi %s, you are now enrolled in %s.", data.Username, data.CourseTitle),
	}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}
