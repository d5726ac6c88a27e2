package transcription

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/voicemail-transcriber/config"
	"github.com/customeros/voicemail-transcriber/dto"
	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()
	return appLogger
}

func newRequest() models.TranscriptionRequest {
	return models.TranscriptionRequest{
		Audio:    []byte("RIFF....WAVEfmt "),
		Filename: "VoiceMessage.wav",
		Options:  models.VoicemailTranscriptionOptions(),
	}
}

func TestWhisperService_Transcribe_SendsVoicemailPolicy(t *testing.T) {
	var form map[string][]string
	var authHeader, uploadedName string
	var uploaded []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		form = r.MultipartForm.Value
		authHeader = r.Header.Get("Authorization")

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		uploadedName = header.Filename
		uploaded, _ = io.ReadAll(file)

		_ = json.NewEncoder(w).Encode(dto.WhisperTranscriptionResponse{
			Text: "Hallo, bitte rufen Sie zurück.",
			Segments: []dto.WhisperSegment{
				{Text: " Hallo, bitte rufen Sie zurück.", AvgLogprob: -0.2, NoSpeechProb: 0.01},
			},
		})
	}))
	defer server.Close()

	svc := NewWhisperService(&config.WhisperConfig{Url: server.URL + "/", ApiKey: "secret", Model: "small", Timeout: 5 * time.Second}, getLogger())
	text, err := svc.Transcribe(context.Background(), newRequest())
	require.NoError(t, err)

	assert.Equal(t, "Hallo, bitte rufen Sie zurück.", text)
	assert.Equal(t, "Bearer secret", authHeader)
	assert.Equal(t, "VoiceMessage.wav", uploadedName)
	assert.Equal(t, []byte("RIFF....WAVEfmt "), uploaded)

	assert.Equal(t, []string{"small"}, form["model"])
	assert.Equal(t, []string{"de"}, form["language"])
	assert.Equal(t, []string{"0"}, form["temperature"])
	assert.Equal(t, []string{"verbose_json"}, form["response_format"])
	assert.Equal(t, []string{"2.4"}, form["compression_ratio_threshold"])
	assert.Equal(t, []string{"-1"}, form["logprob_threshold"])
	assert.Equal(t, []string{"0.6"}, form["no_speech_threshold"])
	assert.Equal(t, []string{"false"}, form["condition_on_previous_text"])
	assert.Equal(t, []string{"true"}, form["word_timestamps"])
}

func TestWhisperService_Transcribe_NoApiKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(dto.WhisperTranscriptionResponse{Text: " Guten Tag "})
	}))
	defer server.Close()

	svc := NewWhisperService(&config.WhisperConfig{Url: server.URL, Model: "base", Timeout: 5 * time.Second}, getLogger())
	text, err := svc.Transcribe(context.Background(), newRequest())
	require.NoError(t, err)
	assert.Equal(t, "Guten Tag", text)
}

func TestWhisperService_Transcribe_SilenceIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(dto.WhisperTranscriptionResponse{
			Text: "Untertitel im Auftrag des ZDF",
			Segments: []dto.WhisperSegment{
				{Text: "Untertitel im Auftrag des ZDF", AvgLogprob: -1.4, NoSpeechProb: 0.9},
			},
		})
	}))
	defer server.Close()

	svc := NewWhisperService(&config.WhisperConfig{Url: server.URL, Model: "small", Timeout: 5 * time.Second}, getLogger())
	_, err := svc.Transcribe(context.Background(), newRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, mailerrors.ErrEmptyTranscription)
}

func TestWhisperService_Transcribe_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid audio","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	svc := NewWhisperService(&config.WhisperConfig{Url: server.URL, Model: "small", Timeout: 5 * time.Second}, getLogger())
	_, err := svc.Transcribe(context.Background(), newRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, mailerrors.ErrTranscription)
	assert.Contains(t, err.Error(), "invalid audio")
}

func TestWhisperService_Transcribe_EmptyAudio(t *testing.T) {
	svc := NewWhisperService(&config.WhisperConfig{Url: "http://127.0.0.1:1", Model: "small", Timeout: time.Second}, getLogger())
	request := newRequest()
	request.Audio = nil

	_, err := svc.Transcribe(context.Background(), request)
	assert.ErrorIs(t, err, mailerrors.ErrTranscription)
}

func TestKeptText(t *testing.T) {
	opts := models.VoicemailTranscriptionOptions()
	response := dto.WhisperTranscriptionResponse{
		Segments: []dto.WhisperSegment{
			{Text: " Hallo,", AvgLogprob: -0.3, NoSpeechProb: 0.1},
			// silent and unsure: dropped
			{Text: " ...", AvgLogprob: -1.5, NoSpeechProb: 0.8},
			// silent but confident: kept
			{Text: " hier ist Anna.", AvgLogprob: -0.5, NoSpeechProb: 0.7},
			// unsure but speech: kept
			{Text: " Bitte zurückrufen.", AvgLogprob: -1.2, NoSpeechProb: 0.2},
		},
	}

	assert.Equal(t, "Hallo, hier ist Anna. Bitte zurückrufen.", keptText(response, opts))
	assert.Equal(t, "", keptText(dto.WhisperTranscriptionResponse{Text: "   "}, opts))
}
