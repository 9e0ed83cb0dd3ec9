package notify

import (
	"fmt"
	"strings"
)

// Template identifies a stage-specific message.
type Template string

const (
	TemplateCandidateInvite         Template = "candidate_invite"
	TemplateHRNotified              Template = "hr_notified"
	TemplateNDNotified              Template = "nd_notified"
	TemplateHRSignatureReady        Template = "hr_signature_ready"
	TemplateCandidateSignatureReady Template = "candidate_signature_ready"
)

type template struct {
	subject string
	body    string
	sms     string
}

var templates = map[Template]template{
	TemplateCandidateInvite: {
		subject: "Complete your onboarding for {{tourName}}",
		body: `<p>Hi {{candidateFirstName}},</p>
<p>{{ndName}} has started your onboarding as {{positionTitle}} on {{tourName}}.</p>
<p>Please complete your information here: <a href="{{link}}">{{link}}</a></p>
<p>This link expires on {{expiresAt}}.</p>`,
		sms: "Complete your onboarding for {{tourName}}: {{link}}",
	},
	TemplateHRNotified: {
		subject: "Candidate information submitted: {{candidateName}}",
		body: `<p>{{candidateName}} submitted their information for {{positionTitle}} on {{tourName}}.</p>
<p>Request #{{requestId}} is waiting for HR completion.</p>`,
	},
	TemplateNDNotified: {
		subject: "Offer letter ready for your initials: {{candidateName}}",
		body: `<p>HR completed request #{{requestId}} for {{candidateName}}.</p>
<p>The offer letter has been sent for signature. You sign first.</p>`,
	},
	TemplateHRSignatureReady: {
		subject: "Offer letter ready for HR signature: {{candidateName}}",
		body:    `<p>The National Director initialed the offer letter for {{candidateName}} (request #{{requestId}}). It is ready for your signature.</p>`,
	},
	TemplateCandidateSignatureReady: {
		subject: "Your offer letter is ready to sign",
		body:    `<p>Hi {{candidateFirstName}},</p><p>Your offer letter for {{positionTitle}} on {{tourName}} is ready for your signature.</p>`,
	},
}

// renderTemplate replaces {{key}} placeholders and drops any that have no value.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
