package telephony

import (
	"encoding/xml"
)

const (
	defaultCallMessage = "This is an emergency alert from CareAlert. A patient needs assistance."
	voice              = "alice"
	language           = "en-US"
)

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type gather struct {
	XMLName   xml.Name `xml:"Gather"`
	NumDigits int      `xml:"numDigits,attr"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	Say       say
}

type dial struct {
	XMLName xml.Name `xml:"Dial"`
	Number  string   `xml:",chardata"`
}

func render(verbs ...any) (string, error) {
	b, err := xml.Marshal(twimlResponse{Verbs: verbs})
	if err != nil {
		return "", err
	}
	return xml.Header + string(b), nil
}

// AlertCallTwiML is spoken to the callee: the message, then a one-digit
// prompt posted back to gatherURL when one is configured.
func AlertCallTwiML(message, gatherURL string) (string, error) {
	if message == "" {
		message = defaultCallMessage
	}
	verbs := []any{
		say{Voice: voice, Language: language, Text: message},
		pause{Length: 2},
	}
	if gatherURL != "" {
		verbs = append(verbs,
			say{Voice: voice, Language: language, Text: "Press 1 to acknowledge this alert. Press 2 to call back."},
			gather{NumDigits: 1, Action: gatherURL, Method: "POST", Say: say{Text: "Please press 1 or 2."}},
			say{Text: "We didn't receive any input. Goodbye!"},
		)
	}
	return render(verbs...)
}

// GatherReplyTwiML answers the digit the callee pressed.
func GatherReplyTwiML(digits, callbackNumber string) (string, error) {
	switch digits {
	case "1":
		return render(say{Text: "Thank you for acknowledging. Help is on the way."})
	case "2":
		if callbackNumber == "" {
			return render(say{Text: "No callback number is configured. Goodbye."})
		}
		return render(say{Text: "Connecting you now."}, dial{Number: callbackNumber})
	default:
		return render(say{Text: "Invalid input. Goodbye."})
	}
}
