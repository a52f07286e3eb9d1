package emotion

// Avatar is one of the faces the avatar firmware can draw.
type Avatar string

const (
	AvatarNeutral   Avatar = "neutral"
	AvatarHappy     Avatar = "happy"
	AvatarSad       Avatar = "sad"
	AvatarAngry     Avatar = "angry"
	AvatarConfused  Avatar = "confused"
	AvatarSurprised Avatar = "surprised"
)

// AvatarFor maps a detected label onto the avatar's smaller face set.
func AvatarFor(l Label) Avatar {
	switch l {
	case Happy:
		return AvatarHappy
	case Sad, Fear:
		return AvatarSad
	case Angry, Disgust:
		return AvatarAngry
	case Surprise:
		return AvatarConfused
	default:
		return AvatarNeutral
	}
}

// ListenerAvatarFor is the mapping the polling avatar firmware applies to
// /listener/emotion. Labels it does not recognise, disgust among them, keep
// the current face.
func ListenerAvatarFor(l Label, current Avatar) Avatar {
	switch l {
	case Happy:
		return AvatarHappy
	case Sad:
		return AvatarSad
	case Angry:
		return AvatarAngry
	case Neutral:
		return AvatarNeutral
	case Fear, Surprise:
		return AvatarSurprised
	default:
		return current
	}
}
