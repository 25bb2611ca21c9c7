package ingest

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/AnTengye/contractlens/model"
	"github.com/AnTengye/contractlens/pkg/logger"
	"github.com/AnTengye/contractlens/service"
)

// ObjectStager holds document bytes where the remote service can reach them.
type ObjectStager interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, objectName string) (string, error)
	Delete(ctx context.Context, objectName string) error
}

// RemoteTasks runs extraction jobs on a remote service.
type RemoteTasks interface {
	CreateTask(ctx context.Context, fileURL, dataID string) (string, error)
	Await(ctx context.Context, taskID, dataID string) (string, error)
	FetchContentList(ctx context.Context, zipURL string) ([]service.ContentItem, error)
}

// RemoteExtractor stages a document in object storage, asks the remote
// service to extract it and converts the returned content list into pages.
// The staged copy is deleted whatever the outcome.
type RemoteExtractor struct {
	stager ObjectStager
	tasks  RemoteTasks
}

func NewRemoteExtractor(stager ObjectStager, tasks RemoteTasks) *RemoteExtractor {
	return &RemoteExtractor{stager: stager, tasks: tasks}
}

func (e *RemoteExtractor) Extract(ctx context.Context, doc *model.Document) (*model.ExtractedText, error) {
	dataID := uuid.NewString()
	objectName := service.StagingObjectName(dataID, doc.FileName)

	if err := e.stager.Put(ctx, objectName, doc.Content, doc.Format.MediaType()); err != nil {
		return nil, model.ExtractionError("document could not be staged for extraction", err)
	}
	defer func() {
		if err := e.stager.Delete(context.WithoutCancel(ctx), objectName); err != nil {
			logger.Warn(ctx, "staged document not deleted", "object", objectName, "error", err)
		}
	}()

	url, err := e.stager.PresignedURL(ctx, objectName)
	if err != nil {
		return nil, model.ExtractionError("document could not be staged for extraction", err)
	}

	taskID, err := e.tasks.CreateTask(ctx, url, dataID)
	if err != nil {
		return nil, model.ExtractionError("remote extraction could not be started", err)
	}
	logger.Info(ctx, "remote extraction started", "task_id", taskID, "data_id", dataID, "file", doc.FileName)

	zipURL, err := e.tasks.Await(ctx, taskID, dataID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, model.ExtractionError("remote extraction failed", err)
	}

	items, err := e.tasks.FetchContentList(ctx, zipURL)
	if err != nil {
		return nil, model.ExtractionError("remote extraction result could not be read", err)
	}
	return contentListText(items), nil
}

// contentListText keeps text-bearing blocks in reading order. Each block ends
// with a blank line so paragraph boundaries survive.
func contentListText(items []service.ContentItem) *model.ExtractedText {
	segs := make([]model.Segment, 0, len(items))
	for _, it := range items {
		var text string
		switch it.Type {
		case "text", "title", "list", "equation":
			text = it.Text
		case "table":
			text = it.TableBody
		default:
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segs = append(segs, model.Segment{Page: it.PageIdx + 1, Text: text + "\n\n"})
	}
	return model.NewExtractedText(segs)
}
