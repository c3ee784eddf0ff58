package broadcast

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kopainglay2025/relay/internal/channel"
	"github.com/kopainglay2025/relay/internal/conversation"
)

// Replier is the slice of the dispatch engine the coordinator needs. Every
// broadcast send goes through the normal reply path so the traffic shows up
// in chat history like any admin message.
type Replier interface {
	Reply(ctx context.Context, chatID string, content channel.Content) (*conversation.DispatchResult, error)
}

// ChatLister resolves "all known users of a channel" from the store.
type ChatLister interface {
	ListChats(ctx context.Context, ch channel.Channel) ([]*conversation.Chat, error)
}

// JobStore persists job state for audit.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	SetStatus(ctx context.Context, jobID string, status Status) error
	Complete(ctx context.Context, jobID string, successCount int) error
	Get(ctx context.Context, jobID string) (*Job, error)
}

// Coordinator runs broadcast jobs: sequential sends with a fixed inter-send
// delay, one failure never aborting the rest of the batch.
type Coordinator struct {
	jobs      JobStore
	chats     ChatLister
	replier   Replier
	sendDelay time.Duration

	// baseCtx outlives the admin request that started the job but is
	// cancelled on process shutdown.
	baseCtx context.Context
}

func NewCoordinator(baseCtx context.Context, jobs JobStore, chats ChatLister, replier Replier, sendDelay time.Duration) *Coordinator {
	if sendDelay <= 0 {
		sendDelay = time.Second
	}
	return &Coordinator{
		jobs:      jobs,
		chats:     chats,
		replier:   replier,
		sendDelay: sendDelay,
		baseCtx:   baseCtx,
	}
}

// Start resolves the recipient set, records the job and runs it
// asynchronously. With no explicit recipients the set is every chat known
// for the channel at this moment, not a live-updating list.
func (c *Coordinator) Start(ctx context.Context, ch channel.Channel, text string, recipients []string) (string, error) {
	chatIDs, err := c.resolveRecipients(ctx, ch, recipients)
	if err != nil {
		return "", err
	}
	if len(chatIDs) == 0 {
		return "", fmt.Errorf("no recipients for channel %s", ch)
	}

	job := &Job{
		ID:         uuid.NewString(),
		Channel:    ch,
		Text:       text,
		Status:     StatusPending,
		TotalCount: len(chatIDs),
	}
	if err := c.jobs.Create(ctx, job); err != nil {
		return "", err
	}

	go c.run(job, chatIDs)
	return job.ID, nil
}

func (c *Coordinator) Get(ctx context.Context, jobID string) (*Job, error) {
	return c.jobs.Get(ctx, jobID)
}

func (c *Coordinator) resolveRecipients(ctx context.Context, ch channel.Channel, recipients []string) ([]string, error) {
	if len(recipients) > 0 {
		chatIDs := make([]string, len(recipients))
		for i, r := range recipients {
			chatIDs[i] = channel.MakeChatID(ch, r)
		}
		return chatIDs, nil
	}

	chats, err := c.chats.ListChats(ctx, ch)
	if err != nil {
		return nil, err
	}
	chatIDs := make([]string, len(chats))
	for i, chat := range chats {
		chatIDs[i] = chat.ID
	}
	return chatIDs, nil
}

func (c *Coordinator) run(job *Job, chatIDs []string) {
	ctx := c.baseCtx
	if err := c.jobs.SetStatus(ctx, job.ID, StatusProcessing); err != nil {
		log.Printf("[Broadcast] job %s: mark processing: %v", job.ID, err)
	}

	content := channel.Content{Text: job.Text}
	success := 0
	for i, chatID := range chatIDs {
		if ctx.Err() != nil {
			log.Printf("[Broadcast] job %s: aborted by shutdown after %d/%d", job.ID, i, len(chatIDs))
			break
		}
		if i > 0 {
			time.Sleep(c.sendDelay)
		}

		if _, err := c.replier.Reply(ctx, chatID, content); err != nil {
			// Recorded and skipped; the rest of the batch continues.
			log.Printf("[Broadcast] job %s: recipient %s failed: %v", job.ID, chatID, err)
			continue
		}
		success++
	}

	if err := c.jobs.Complete(ctx, job.ID, success); err != nil {
		log.Printf("[Broadcast] job %s: complete: %v", job.ID, err)
	}
	log.Printf("[Broadcast] job %s done: %d/%d delivered", job.ID, success, len(chatIDs))
}
