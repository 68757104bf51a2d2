package vonage

// RingbackTone is played to the caller while an app endpoint rings
const RingbackTone = "https://bigsoundbank.com/UPLOAD/wav/1618.wav"

// Endpoint is the target of a connect action
type Endpoint struct {
	Type   string `json:"type"`
	User   string `json:"user,omitempty"`
	Number string `json:"number,omitempty"`
}

// Action is one step of a call control object
type Action struct {
	Action       string     `json:"action"`
	Text         string     `json:"text,omitempty"`
	From         string     `json:"from,omitempty"`
	RingbackTone string     `json:"ringbackTone,omitempty"`
	Endpoint     []Endpoint `json:"endpoint,omitempty"`
	Name         string     `json:"name,omitempty"`
	BargeIn      bool       `json:"bargeIn,omitempty"`
	Type         []string   `json:"type,omitempty"`
	DTMF         *DTMF      `json:"dtmf,omitempty"`
}

// DTMF configures keypad collection for an input action
type DTMF struct {
	MaxDigits    int  `json:"maxDigits,omitempty"`
	SubmitOnHash bool `json:"submitOnHash,omitempty"`
	TimeOut      int  `json:"timeOut,omitempty"`
}

// NCCO is the list of actions returned to an answer or event webhook
type NCCO []Action

// Talk reads text to the caller
func Talk(text string) Action {
	return Action{Action: "talk", Text: text}
}

// ConnectApp connects the call to an in-app user
func ConnectApp(user string) Action {
	return Action{Action: "connect", RingbackTone: RingbackTone, Endpoint: []Endpoint{{Type: "app", User: user}}}
}

// ConnectPhone connects the call to a phone number, presenting from as the caller id
func ConnectPhone(from, number string) Action {
	return Action{Action: "connect", From: from, Endpoint: []Endpoint{{Type: "phone", Number: number}}}
}

// JoinConversation moves the call into the named conversation
func JoinConversation(name string) Action {
	return Action{Action: "conversation", Name: name}
}

// Prompt reads text and lets the caller interrupt it with the keypad
func Prompt(text string) Action {
	return Action{Action: "talk", Text: text, BargeIn: true}
}

// InputDigits collects up to maxDigits keypad digits, ended early by #. The digits are posted
// to the event webhook.
func InputDigits(maxDigits, timeoutSeconds int) Action {
	return Action{
		Action: "input",
		Type:   []string{"dtmf"},
		DTMF:   &DTMF{MaxDigits: maxDigits, SubmitOnHash: true, TimeOut: timeoutSeconds},
	}
}
