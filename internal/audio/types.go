package audio

import (
	"context"
	"time"
)

// #region recognition
// Outcome classifies one recognition attempt. Failing to understand a
// phrase is an ordinary result, not an error.
type Outcome int

const (
	Recognized Outcome = iota
	NotUnderstood
	ServiceError
)

func (o Outcome) String() string {
	switch o {
	case Recognized:
		return "recognized"
	case NotUnderstood:
		return "not_understood"
	case ServiceError:
		return "service_error"
	default:
		return "unknown"
	}
}

// Recognition is the result of transcribing one phrase in one language.
type Recognition struct {
	Outcome Outcome
	Text    string
	Err     error // set for ServiceError
}
// #endregion recognition

// #region interfaces
// Microphone opens PCM capture streams. Each loop opens its own stream.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields mono 16-bit samples. Read must return when ctx is done.
type Stream interface {
	Read(ctx context.Context, buf []int16) (int, error)
	Close() error
}

// Recognizer transcribes a phrase for one language tag such as "en-US".
type Recognizer interface {
	Recognize(ctx context.Context, pcm []int16, language string) Recognition
}
// #endregion interfaces

// #region config
// Config tunes the volume and speech loops.
type Config struct {
	ChunkSize      int           // samples per volume read
	PhraseChunks   int           // chunks per recognition phrase
	VolumeInterval time.Duration // pause between volume reads
	ReadTimeout    time.Duration
	StopTimeout    time.Duration

	AudioThreshold  int // smoothed volume above which audio is present
	SpeechThreshold int // phrase volume above which recognition runs
	SilenceReads    int // quiet reads before audio_detected clears

	HistoryCapacity        int
	ConversationMinSamples int
	ConversationVariance   float64
	ConversationMean       float64

	Languages     []string
	Keywords      []string
	HindiKeywords []string

	QuestionPaper      string // optional path
	QuestionMinMatches int    // shared words needed, exclusive
}

// DefaultConfig samples volume at 10 Hz and recognizes 30-chunk phrases.
func DefaultConfig() Config {
	return Config{
		ChunkSize:      2048,
		PhraseChunks:   30,
		VolumeInterval: 100 * time.Millisecond,
		ReadTimeout:    500 * time.Millisecond,
		StopTimeout:    2 * time.Second,

		AudioThreshold:  2,
		SpeechThreshold: 8,
		SilenceReads:    10,

		HistoryCapacity:        50,
		ConversationMinSamples: 20,
		ConversationVariance:   100,
		ConversationMean:       15,

		Languages: []string{"hi-IN", "en-IN", "en-US"},
		Keywords: []string{
			"answer", "question", "help", "tell", "what", "how",
			"google", "search", "look", "check", "phone", "call",
			"message", "chat", "send", "share", "whatsapp", "text",
		},
		HindiKeywords: []string{
			"jawab", "uttar", "madad", "kya", "kaise", "batao", "bata",
		},

		QuestionMinMatches: 2,
	}
}
// #endregion config
