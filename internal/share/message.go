package share

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	shareTitle = "Sending G$ via GoodDollar App"
	gdDecimals = 100
)

var validate = validator.New()

// ShareObject is what the platform share sheet receives.
type ShareObject struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

// Text joins message and link on separate lines.
func (o ShareObject) Text() string {
	return o.Message + "\n" + o.URL
}

// Inline joins message and link on one line.
func (o ShareObject) Inline() string {
	return o.Message + " " + o.URL
}

// FormatGD renders an amount in base units as G$ with two decimals.
func FormatGD(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/gdDecimals, amount%gdDecimals)
}

// SendShareObject describes a link that lets the recipient withdraw G$ sent by from.
func SendShareObject(url string, amount int64, to, from string, canShare bool) ShareObject {
	var b strings.Builder
	if to != "" {
		b.WriteString(to + ", You've")
	} else {
		b.WriteString("You've")
	}
	fmt.Fprintf(&b, " received %s G$ from %s. To withdraw open: ", FormatGD(amount), from)
	if canShare {
		b.WriteString(url)
	}

	return ShareObject{Title: shareTitle, Message: b.String(), URL: url}
}

// ReceiveShareObject builds a receive link for code and describes the request.
func ReceiveShareObject(cfg Config, code any, amount int64, to, from string, canShare bool) (ShareObject, error) {
	url, err := GenerateShareLink(cfg, ActionReceive, code)
	if err != nil {
		return ShareObject{}, err
	}

	var b strings.Builder
	if to != "" {
		b.WriteString(to + ", ")
	}
	fmt.Fprintf(&b, "You've got a request from %s", from)
	if amount > 0 {
		fmt.Fprintf(&b, " for %s G$", FormatGD(amount))
	}
	b.WriteString(". To approve transfer open: ")
	if canShare {
		b.WriteString(url)
	}

	return ShareObject{Title: shareTitle, Message: b.String(), URL: url}, nil
}

// HrefLink is an anchor target for sharing through mail or SMS.
type HrefLink struct {
	Link        string `json:"link"`
	Description string `json:"description"`
}

// NewHrefLink picks mailto: for an e-mail address and sms: for an E.164 phone
// number. Any other recipient yields false.
func NewHrefLink(obj ShareObject, to string) (HrefLink, bool) {
	body := EscapeComponent(obj.Text())

	if validate.Var(to, "required,email") == nil {
		return HrefLink{
			Link:        fmt.Sprintf("mailto:%s?subject=%s&body=%s", to, EscapeComponent(obj.Title), body),
			Description: "e-mail",
		}, true
	}

	if validate.Var(to, "required,e164") == nil {
		return HrefLink{
			Link:        fmt.Sprintf("sms:%s?body=%s", to, body),
			Description: "sms",
		}, true
	}

	return HrefLink{}, false
}
