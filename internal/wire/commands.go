package wire

const redactedMask = "********"

// LogonCommand builds the authentication envelope.
func LogonCommand(imei string, accountKey string) (string, error) {
	return Encode(TypeLogon, LogonPayload{IMEI: imei, AccountKey: accountKey})
}

// RedactedLogon renders a logon command with both credentials masked,
// suitable for logs.
func RedactedLogon() string {
	frame, err := LogonCommand(redactedMask, redactedMask)
	if err != nil {
		return TypeLogon
	}
	return frame
}

func MessageCommand(text string) (string, error) {
	return Encode(TypeMessage, text)
}

func PTTCommand(active bool, image string) (string, error) {
	return Encode(TypePTT, PTTPayload{Active: active, Image: image})
}

// AudioCommand uploads an audio data URI.
func AudioCommand(dataURI string) (string, error) {
	return Encode(TypeAudio, dataURI)
}

// RegisterCommand relays a scanned registration code verbatim.
func RegisterCommand(code string) (string, error) {
	return Encode(TypeRegister, code)
}

// StopMeetingCommand signals the end of a meeting with a literal false.
func StopMeetingCommand() (string, error) {
	return Encode(TypeMeeting, false)
}
