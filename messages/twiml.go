package messages

import "encoding/xml"

// Voice used for every <Say>.
const DefaultVoice = "Polly.Joanna"

// TwiMLResponse is the root of a Twilio voice webhook reply.
type TwiMLResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []interface{}
}

type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Say           *Say
}

type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type Dial struct {
	XMLName xml.Name `xml:"Dial"`
	Number  string   `xml:",chardata"`
}

type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// NewGatherResponse says prompt and listens for the next answer. When the
// caller stays silent Twilio falls through to the redirect, which re-asks.
func NewGatherResponse(prompt, action string) *TwiMLResponse {
	return &TwiMLResponse{Verbs: []interface{}{
		Gather{
			Input:         "speech dtmf",
			Action:        action,
			Method:        "POST",
			Timeout:       5,
			SpeechTimeout: "auto",
			Say:           &Say{Voice: DefaultVoice, Text: prompt},
		},
		Redirect{Method: "POST", URL: action},
	}}
}

// NewHangupResponse says prompt and ends the call.
func NewHangupResponse(prompt string) *TwiMLResponse {
	return &TwiMLResponse{Verbs: []interface{}{
		Say{Voice: DefaultVoice, Text: prompt},
		Hangup{},
	}}
}

// NewDialResponse says prompt and transfers the call to number.
func NewDialResponse(prompt, number string) *TwiMLResponse {
	return &TwiMLResponse{Verbs: []interface{}{
		Say{Voice: DefaultVoice, Text: prompt},
		Dial{Number: number},
	}}
}

// Marshal renders the response with the XML declaration Twilio expects.
func (r *TwiMLResponse) Marshal() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
