package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/customeros/voicemail-transcriber/config"
	"github.com/customeros/voicemail-transcriber/dto"
	"github.com/customeros/voicemail-transcriber/interfaces"
	mailerrors "github.com/customeros/voicemail-transcriber/internal/errors"
	"github.com/customeros/voicemail-transcriber/internal/logger"
	"github.com/customeros/voicemail-transcriber/internal/models"
	"github.com/customeros/voicemail-transcriber/internal/tracing"
)

const transcriptionsPath = "/v1/audio/transcriptions"

type whisperService struct {
	cfg    *config.WhisperConfig
	log    logger.Logger
	client *http.Client
}

// NewWhisperService returns a client for an OpenAI-compatible Whisper server.
func NewWhisperService(cfg *config.WhisperConfig, log logger.Logger) interfaces.SpeechToText {
	return &whisperService{
		cfg: cfg,
		log: log,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (s *whisperService) Transcribe(ctx context.Context, request models.TranscriptionRequest) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "whisperService.Transcribe")
	defer span.Finish()
	tracing.SetDefaultHttpServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.String("filename", request.Filename), tracingLog.Int("audio.bytes", len(request.Audio)))
	tracing.LogObjectAsJson(span, "options", request.Options)

	if len(request.Audio) == 0 {
		err := errors.Wrap(mailerrors.ErrTranscription, "audio is empty")
		tracing.TraceErr(span, err)
		return "", err
	}

	body, contentType, err := s.buildForm(request)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(mailerrors.ErrTranscription, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.Url, "/")+transcriptionsPath, body)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(mailerrors.ErrTranscription, err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	if s.cfg.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.ApiKey)
	}
	tracing.InjectSpanContextIntoHTTPRequest(req, span)

	resp, err := s.client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(mailerrors.ErrTranscription, "request failed: "+err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(mailerrors.ErrTranscription, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = errors.Wrapf(mailerrors.ErrTranscription, "request failed with status code %d: %s", resp.StatusCode, errorMessage(respBody))
		tracing.TraceErr(span, err)
		return "", err
	}

	var response dto.WhisperTranscriptionResponse
	if err = json.Unmarshal(respBody, &response); err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(mailerrors.ErrTranscription, "failed to unmarshal response: "+err.Error())
	}

	text := keptText(response, request.Options)
	span.LogFields(tracingLog.Int("segments", len(response.Segments)), tracingLog.Int("text.length", len(text)))
	if text == "" {
		err = errors.Wrapf(mailerrors.ErrEmptyTranscription, "no speech recognized in %s", request.Filename)
		tracing.TraceErr(span, err)
		return "", err
	}

	s.log.Debugf("Transcribed %s (%.1fs audio, %d segments)", request.Filename, response.Duration, len(response.Segments))
	return text, nil
}

func (s *whisperService) buildForm(request models.TranscriptionRequest) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := request.Filename
	if filename == "" {
		filename = "audio.wav"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	header.Set("Content-Type", mimetype.Detect(request.Audio).String())
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err = part.Write(request.Audio); err != nil {
		return nil, "", err
	}

	opts := request.Options
	fields := [][2]string{
		{"model", s.cfg.Model},
		{"language", opts.Language},
		{"temperature", formatFloat(opts.Temperature)},
		{"response_format", "verbose_json"},
		{"compression_ratio_threshold", formatFloat(opts.CompressionRatioThreshold)},
		{"logprob_threshold", formatFloat(opts.LogProbThreshold)},
		{"no_speech_threshold", formatFloat(opts.NoSpeechThreshold)},
		{"condition_on_previous_text", strconv.FormatBool(opts.ConditionOnPreviousText)},
		{"word_timestamps", strconv.FormatBool(opts.WordTimestamps)},
	}
	if opts.WordTimestamps {
		fields = append(fields, [2]string{"timestamp_granularities[]", "word"}, [2]string{"timestamp_granularities[]", "segment"})
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err = writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}

	if err = writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

// keptText joins the segments that pass the silence policy: a segment that is
// probably silence and decoded with low confidence is dropped.
func keptText(response dto.WhisperTranscriptionResponse, opts models.TranscriptionOptions) string {
	if len(response.Segments) == 0 {
		return strings.TrimSpace(response.Text)
	}

	parts := make([]string, 0, len(response.Segments))
	for _, segment := range response.Segments {
		if segment.NoSpeechProb > opts.NoSpeechThreshold && segment.AvgLogprob < opts.LogProbThreshold {
			continue
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func errorMessage(body []byte) string {
	var response dto.WhisperErrorResponse
	if err := json.Unmarshal(body, &response); err == nil && response.Error.Message != "" {
		return response.Error.Message
	}
	return string(body)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
