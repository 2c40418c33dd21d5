package SMS

import (
	"os"
	"regexp"
	"strings"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type Result struct {
	Sent   bool   `json:"sent"`
	Reason string `json:"reason,omitempty"`
	SID    string `json:"sid,omitempty"`
}

const (
	ReasonFailed           = "failed"
	ReasonMissingRecipient = "missing_recipient"
	ReasonInvalidNumber    = "invalid_number"
)

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

var restClient *twilio.RestClient

func Setup() {
	restClient = twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: os.Getenv("TWILIO_ACCOUNT_SID"),
		Password: os.Getenv("TWILIO_AUTH_TOKEN"),
	})
}

func IsValidE164(number string) bool {
	return e164Pattern.MatchString(number)
}

// UseMessagingService decides the sender identity: German destinations go out
// over the registered from-number, everything else over the messaging service.
func UseMessagingService(to string) bool {
	return !strings.HasPrefix(to, "+49")
}

func Send(to, body string) Result {
	if to == "" {
		return Result{Sent: false, Reason: ReasonMissingRecipient}
	}
	if !IsValidE164(to) {
		return Result{Sent: false, Reason: ReasonInvalidNumber}
	}
	if restClient == nil {
		Setup()
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetBody(body)
	if UseMessagingService(to) {
		params.SetMessagingServiceSid(os.Getenv("TWILIO_MESSAGING_SERVICE_SID"))
	} else {
		params.SetFrom(os.Getenv("TWILIO_FROM_NUMBER"))
	}

	resp, err := restClient.Api.CreateMessage(params)
	if err != nil {
		return Result{Sent: false, Reason: ReasonFailed}
	}
	result := Result{Sent: true}
	if resp.Sid != nil {
		result.SID = *resp.Sid
	}
	return result
}

// ValidateWebhookSignature checks the x-twilio-signature header against the
// form-encoded body, using Twilio's own validator.
func ValidateWebhookSignature(url string, params map[string]string, signature string) bool {
	validator := twilioClient.NewRequestValidator(os.Getenv("TWILIO_AUTH_TOKEN"))
	return validator.Validate(url, params, signature)
}
