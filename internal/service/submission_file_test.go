package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/pkg/ai"
)

type stubArchive struct {
	mu     sync.Mutex
	err    error
	stored map[string]string
	calls  int
}

func (a *stubArchive) Store(_ context.Context, assignmentID, name string, reader io.Reader) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if a.stored == nil {
		a.stored = make(map[string]string)
	}
	key := assignmentID + "/" + name
	a.stored[key] = string(content)
	return "https://res.cloudinary.com/demo/raw/upload/" + key, nil
}

func uploadedFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

const uploadedSource = "def solve(sizes, limit):\n    return len([s for s in sizes if s > limit])\n"

func queueFullRun(fx pipelineFixture) {
	fx.provider.AddResponse(ai.JSON(assessmentResponse(false, 45)))
	fx.provider.AddResponse(ai.JSON(goalResponse("Solve two Easy Arrays problems and score at least 70% on each.", "Arrays", "Easy")))
	fx.provider.AddResponse(ai.JSON(scenarioResponse("Arrays")))
}

func TestPipelineArchivesUploadedFileOnce(t *testing.T) {
	fx := newPipelineFixture(t, false)
	archive := &stubArchive{}
	fx.rebuild(func(deps *PipelineDeps) { deps.Archive = archive })
	queueFullRun(fx)
	ctx := context.Background()

	result, err := fx.service.Submit(ctx, "stu-1", fx.current.ID, dto.SubmissionRequest{Language: "python"}, uploadedFile(t, "solve.py", []byte(uploadedSource)))
	require.NoError(t, err)
	require.Equal(t, uploadedSource, result.Assignment.SubmittedCode)
	require.Equal(t, "https://res.cloudinary.com/demo/raw/upload/"+fx.current.ID+"/solve.py", result.Assignment.SubmittedFileURL)

	// A request that loses the claim never reaches the archive.
	_, err = fx.service.Submit(ctx, "stu-1", fx.current.ID, dto.SubmissionRequest{Language: "python"}, uploadedFile(t, "solve.py", []byte("print('other')\n")))
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.Equal(t, 1, archive.calls)
	require.Equal(t, uploadedSource, archive.stored[fx.current.ID+"/solve.py"])

	stored, err := fx.repos.assignments.GetByID(ctx, fx.current.ID)
	require.NoError(t, err)
	require.Equal(t, uploadedSource, stored.SubmittedCode)
	require.Equal(t, result.Assignment.SubmittedFileURL, stored.SubmittedFileURL)
}

func TestPipelineArchiveFailureDoesNotBlockSubmission(t *testing.T) {
	fx := newPipelineFixture(t, false)
	archive := &stubArchive{err: errors.New("cloudinary: 503")}
	fx.rebuild(func(deps *PipelineDeps) { deps.Archive = archive })
	queueFullRun(fx)

	result, err := fx.service.Submit(context.Background(), "stu-1", fx.current.ID, dto.SubmissionRequest{Language: "python"}, uploadedFile(t, "solve.py", []byte(uploadedSource)))
	require.NoError(t, err)
	require.Equal(t, 1, archive.calls)
	require.Empty(t, result.Assignment.SubmittedFileURL)
	require.Equal(t, models.AssignmentStatusCompleted, result.Assignment.Status)
	require.NotNil(t, result.NextAssignment)
}

func TestPipelineRejectsUnusableFiles(t *testing.T) {
	cases := map[string][]byte{
		"binary":   append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...),
		"oversize": []byte(strings.Repeat("x = 1\n", MaxSubmissionBytes/6+10)),
		"blank":    []byte("   \n\t\n"),
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			fx := newPipelineFixture(t, false)
			archive := &stubArchive{}
			fx.rebuild(func(deps *PipelineDeps) { deps.Archive = archive })

			_, err := fx.service.Submit(context.Background(), "stu-1", fx.current.ID, dto.SubmissionRequest{Language: "python"}, uploadedFile(t, "solve.py", content))
			require.ErrorIs(t, err, ErrInvalidRequest)
			require.Zero(t, archive.calls)
			require.Zero(t, fx.provider.CallCount())

			stored, err := fx.repos.assignments.GetByID(context.Background(), fx.current.ID)
			require.NoError(t, err)
			require.Equal(t, models.AssignmentStatusAssigned, stored.Status)
		})
	}
}
