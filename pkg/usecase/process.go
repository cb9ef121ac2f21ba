package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/service/audio"
	"github.com/secmon-lab/pilot/pkg/utils/safe"
)

// ProcessFile runs the full pipeline over an already-recorded WAV file.
// The same chunking, transcription, annotation and analysis path applies;
// only the audio source differs, so a processed file and a live recording
// produce the same report shape.
func (uc *UseCases) ProcessFile(ctx context.Context, path string, identity model.Identity) (*model.Session, string, error) {
	source, err := audio.OpenFile(path)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to open audio file", goerr.V("path", path))
	}
	defer safe.Close(ctx, source)

	recorder := uc.NewRecorder(identity)
	session, err := recorder.Run(ctx, source)
	if err != nil {
		return session, "", err
	}
	return session, recorder.ReportPath(), nil
}
