package greenapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Wire shapes for the nested message-kind payloads. Exactly one of the
// *MessageData objects is present for a given message; ParseMessage
// discriminates on whichever is set.

type rawTextMessage struct {
	TextMessage string `json:"textMessage"`
}

type rawExtendedTextMessage struct {
	Text string `json:"text"`
}

type rawFileMessage struct {
	DownloadURL string `json:"downloadUrl"`
	Caption     string `json:"caption"`
	FileName    string `json:"fileName"`
	MimeType    string `json:"mimeType"`
	FileSize    int64  `json:"fileSize"`
}

type rawLocationMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"nameLocation"`
	Address   string  `json:"address"`
}

type rawContactMessage struct {
	DisplayName string `json:"displayName"`
	VCard       string `json:"vcard"`
}

type rawQuotedMessage struct {
	StanzaID string `json:"stanzaId"`
}

type rawMessageData struct {
	TextMessageData         *rawTextMessage         `json:"textMessageData"`
	ExtendedTextMessageData *rawExtendedTextMessage `json:"extendedTextMessageData"`
	ImageMessageData        *rawFileMessage         `json:"imageMessageData"`
	VideoMessageData        *rawFileMessage         `json:"videoMessageData"`
	AudioMessageData        *rawFileMessage         `json:"audioMessageData"`
	VoiceMessageData        *rawFileMessage         `json:"voiceMessageData"`
	DocumentMessageData     *rawFileMessage         `json:"documentMessageData"`
	LocationMessageData     *rawLocationMessage     `json:"locationMessageData"`
	ContactMessageData      *rawContactMessage      `json:"contactMessageData"`
	StickerMessageData      *rawFileMessage         `json:"stickerMessageData"`
	QuotedMessage           *rawQuotedMessage       `json:"quotedMessage"`
}

type rawMessage struct {
	IDMessage  string `json:"idMessage"`
	MessageID  string `json:"messageId"` // older instance versions
	Type       string `json:"type"`      // "incoming" or "outgoing"
	Timestamp  int64  `json:"timestamp"`
	ChatID     string `json:"chatId"`
	Author     string `json:"author"` // sender JID in group chats
	SenderName string `json:"senderName"`
	Forwarded  bool   `json:"forwarded"`

	// Message-kind payloads appear either nested under messageData or,
	// on some instance versions, at the top level.
	MessageData *rawMessageData `json:"messageData"`
	rawMessageData
}

// ParseMessage normalizes a raw Green API chat history entry.
// Unrecognized message kinds degrade to an empty text message rather than
// failing; an error is returned only when the entry cannot be decoded or
// has no usable identifier.
func ParseMessage(raw json.RawMessage) (*Message, error) {
	var rm rawMessage
	if err := json.Unmarshal(raw, &rm); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	id := rm.IDMessage
	if id == "" {
		id = rm.MessageID
	}
	if id == "" {
		return nil, fmt.Errorf("message has no id")
	}

	msg := &Message{
		ID:        id,
		ChatID:    rm.ChatID,
		Outgoing:  rm.Type == "outgoing",
		Forwarded: rm.Forwarded,
		Kind:      KindText,
	}
	if rm.Timestamp != 0 {
		msg.Timestamp = unixTimestamp(rm.Timestamp)
	}

	// Sender: in a private chat the peer is the sender of incoming messages;
	// in a group chat the author field carries the sender JID.
	if !msg.Outgoing {
		if strings.HasSuffix(rm.ChatID, "@c.us") {
			msg.SenderPhone = strings.TrimSuffix(rm.ChatID, "@c.us")
		} else if strings.HasSuffix(rm.Author, "@c.us") {
			msg.SenderPhone = strings.TrimSuffix(rm.Author, "@c.us")
		}
		msg.SenderName = rm.SenderName
	}

	data := &rm.rawMessageData
	if rm.MessageData != nil {
		data = rm.MessageData
	}

	switch {
	case data.TextMessageData != nil:
		msg.Kind = KindText
		msg.Content = data.TextMessageData.TextMessage

	case data.ExtendedTextMessageData != nil:
		msg.Kind = KindText
		msg.Content = data.ExtendedTextMessageData.Text

	case data.ImageMessageData != nil:
		msg.Kind = KindImage
		msg.Content = data.ImageMessageData.Caption
		msg.Media = fileMedia(data.ImageMessageData, "")

	case data.VideoMessageData != nil:
		msg.Kind = KindVideo
		msg.Content = data.VideoMessageData.Caption
		msg.Media = fileMedia(data.VideoMessageData, "")

	case data.AudioMessageData != nil:
		msg.Kind = KindAudio
		msg.Media = fileMedia(data.AudioMessageData, "")

	case data.VoiceMessageData != nil:
		msg.Kind = KindVoice
		msg.Media = fileMedia(data.VoiceMessageData, "audio/ogg")

	case data.DocumentMessageData != nil:
		msg.Kind = KindDocument
		msg.Content = data.DocumentMessageData.Caption
		msg.Media = fileMedia(data.DocumentMessageData, "")

	case data.LocationMessageData != nil:
		msg.Kind = KindLocation
		loc := data.LocationMessageData
		msg.Location = &LocationInfo{
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Name:      loc.Name,
			Address:   loc.Address,
		}

	case data.ContactMessageData != nil:
		msg.Kind = KindContact
		ct := data.ContactMessageData
		msg.Contact = &ContactCard{
			DisplayName: ct.DisplayName,
			VCard:       ct.VCard,
		}

	case data.StickerMessageData != nil:
		msg.Kind = KindSticker
		msg.Media = fileMedia(data.StickerMessageData, "image/webp")

	default:
		// Unknown kind: keep the message as empty text so the sync still
		// records that it exists.
	}

	if data.QuotedMessage != nil {
		msg.ReplyToID = data.QuotedMessage.StanzaID
	}

	return msg, nil
}

// fileMedia builds a MediaInfo from a file-style payload, applying a fixed
// mime type for kinds where the API omits one.
func fileMedia(f *rawFileMessage, fixedMime string) *MediaInfo {
	mime := f.MimeType
	if fixedMime != "" {
		mime = fixedMime
	}
	return &MediaInfo{
		URL:       f.DownloadURL,
		FileName:  f.FileName,
		MimeType:  mime,
		SizeBytes: f.FileSize,
	}
}
