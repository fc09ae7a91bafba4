package domain

import "testing"

// TestPipelineStateValidate checks stage and field consistency rules.
func TestPipelineStateValidate(t *testing.T) {
	file := &InputFile{Name: "libro.pdf", Path: "/tmp/libro.pdf"}

	tests := []struct {
		name    string
		state   PipelineState
		wantErr bool
	}{
		{name: "idle", state: PipelineState{Stage: StageIdle}},
		{name: "idle with file", state: PipelineState{Stage: StageIdle, SelectedFile: file}, wantErr: true},
		{name: "file selected", state: PipelineState{Stage: StageFileSelected, SelectedFile: file}},
		{name: "extracting with text", state: PipelineState{Stage: StageExtracting, SelectedFile: file, ExtractedText: "x"}, wantErr: true},
		{name: "text ready empty text", state: PipelineState{Stage: StageTextReady, SelectedFile: file}},
		{name: "text ready with audio", state: PipelineState{Stage: StageTextReady, SelectedFile: file, AudioReference: "a.mp3"}, wantErr: true},
		{name: "audio ready", state: PipelineState{Stage: StageAudioReady, SelectedFile: file, ExtractedText: "x", AudioReference: "a.mp3", AudioStale: true}},
		{name: "audio ready without audio", state: PipelineState{Stage: StageAudioReady, SelectedFile: file}, wantErr: true},
		{name: "stale without audio", state: PipelineState{Stage: StageTextReady, SelectedFile: file, AudioStale: true}, wantErr: true},
		{name: "error without kind", state: PipelineState{Stage: StageIdle, ErrorMessage: "x"}, wantErr: true},
		{name: "kind without message", state: PipelineState{Stage: StageIdle, ErrorKind: ErrorKindValidation}, wantErr: true},
		{name: "unknown stage", state: PipelineState{Stage: "done"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestStageInFlight checks which stages hold an outstanding request.
func TestStageInFlight(t *testing.T) {
	for _, stage := range []Stage{StageExtracting, StageSynthesizing} {
		if !stage.InFlight() {
			t.Fatalf("%s.InFlight() = false, want true", stage)
		}
	}
	for _, stage := range []Stage{StageIdle, StageFileSelected, StageTextReady, StageAudioReady} {
		if stage.InFlight() {
			t.Fatalf("%s.InFlight() = true, want false", stage)
		}
	}
}
