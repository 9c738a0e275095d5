package ingest

import (
	"context"
	"io"
)

// Service turns raw learner material into a source digest.
type Service struct {
	transcripts *TranscriptFetcher
	digester    *Digester
}

// NewService creates a Service.
func NewService(transcripts *TranscriptFetcher, digester *Digester) *Service {
	return &Service{transcripts: transcripts, digester: digester}
}

// FromPDFFile digests the PDF at path.
func (s *Service) FromPDFFile(ctx context.Context, path string) (string, error) {
	text, err := ExtractPDF(path)
	if err != nil {
		return "", err
	}
	return s.digester.Digest(ctx, text)
}

// FromPDF digests an uploaded PDF.
func (s *Service) FromPDF(ctx context.Context, r io.ReaderAt, size int64) (string, error) {
	text, err := ExtractPDFReader(r, size)
	if err != nil {
		return "", err
	}
	return s.digester.Digest(ctx, text)
}

// FromVideo digests the transcript of a YouTube video.
func (s *Service) FromVideo(ctx context.Context, rawURL string) (string, error) {
	text, err := s.transcripts.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return s.digester.Digest(ctx, text)
}
