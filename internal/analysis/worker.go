package analysis

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"gel-controller/internal/model"
)

// Analyzer is the external diff-analysis collaborator: it compares a
// changeset capture against stored baselines and produces a report.
type Analyzer interface {
	Analyze(ctx context.Context, changesetPath, roomID string) (string, error)
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Job is one capture batch queued for analysis. The last path in the batch
// is the changeset handed to the analyzer.
type Job struct {
	RoomID string
	Paths  []string
}

// WorkerPool manages a pool of workers running analysis jobs and notifying
// room subscribers about the results.
type WorkerPool struct {
	size     int
	jobs     chan Job
	db       *gorm.DB
	webpush  *webpush.Options
	sender   NotificationSender
	analyzer Analyzer
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, analyzer Analyzer) *WorkerPool {
	return &WorkerPool{
		size:     size,
		jobs:     make(chan Job, size*4),
		db:       db,
		webpush:  webpushOptions,
		sender:   &WebPushSender{},
		analyzer: analyzer,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Analysis worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			log.Printf("Analysis worker %d processing room %s (%d files)", id, job.RoomID, len(job.Paths))
			wp.runAnalysis(ctx, job)
		case <-ctx.Done():
			log.Printf("Analysis worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a job without blocking the caller. Returns false when the
// queue is full; the caller treats a dropped job as a counted failure, not
// an error.
func (wp *WorkerPool) Dispatch(roomID string, paths []string) bool {
	select {
	case wp.jobs <- Job{RoomID: roomID, Paths: paths}:
		return true
	default:
		log.Printf("Analysis queue full, dropping job for room %s", roomID)
		return false
	}
}

// runAnalysis invokes the analyzer on the job's changeset and pushes the
// report to the room's subscribers. Analysis is fire-and-forget: failures
// are logged, never propagated.
func (wp *WorkerPool) runAnalysis(ctx context.Context, job Job) {
	if wp.analyzer == nil || len(job.Paths) == 0 {
		return
	}
	changeset := job.Paths[len(job.Paths)-1]
	report, err := wp.analyzer.Analyze(ctx, changeset, job.RoomID)
	if err != nil {
		log.Printf("Analysis failed for room %s (changeset %s): %v", job.RoomID, changeset, err)
		return
	}
	wp.notifyRoomSubscribers(ctx, job.RoomID, report)
}

// notifyRoomSubscribers sends the report to every subscription watching the room.
func (wp *WorkerPool) notifyRoomSubscribers(ctx context.Context, roomID, report string) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_rooms sr ON sr.endpoint = push_subscriptions.endpoint").
		Where("sr.room_id = ?", roomID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for room %s: %v", roomID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d analysis notifications for room %s", len(subscriptions), roomID)
	payload := []byte(fmt.Sprintf("Room %s analysis: %s", roomID, report))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification, cleaning up
// subscriptions the push service reports as gone.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}

// LogAnalyzer is a stand-in analyzer used when no external vision service is
// configured; it reports the changeset location without inspecting pixels.
type LogAnalyzer struct{}

// Analyze returns a minimal report naming the changeset.
func (LogAnalyzer) Analyze(_ context.Context, changesetPath, roomID string) (string, error) {
	log.Printf("Analysis requested for room %s: %s", roomID, changesetPath)
	return fmt.Sprintf("changeset %s queued for review", changesetPath), nil
}
