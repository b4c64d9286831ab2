package subscriber

import (
	"sync"

	"github.com/securedimensions/websub-subscriber/model"
)

// RequestJob represents an outbound subscribe or unsubscribe request to a
// hub. The subscription is a snapshot taken when the job was queued.
type RequestJob struct {
	Subscription model.Subscription
	Mode         string
}

// Worker is an interface to allow other types of workers to deliver
// outbound hub requests.
type Worker interface {
	Add(job RequestJob)
	Start()
	Stop()
}

// jobBuffer sizes the job channel so Add does not block handler
// goroutines while workers sit in retry backoff.
const jobBuffer = 64

// NewGoWorker creates a new worker from the specified subscriber and
// worker count.
func NewGoWorker(s *Subscriber, workerCount int) *GoWorker {
	return &GoWorker{
		subscriber:  s,
		workerCount: workerCount,
		jobCh:       make(chan RequestJob, jobBuffer),
	}
}

// GoWorker is a basic Goroutine-based worker.
// It will start workerCount workers and process jobs from a channel.
type GoWorker struct {
	subscriber  *Subscriber
	workerCount int
	jobCh       chan RequestJob

	mu      sync.Mutex
	stopped bool
}

// Add will add a job to the queue. A job queued after Stop is dropped and
// logged; a socket disconnect or renewal firing that races shutdown must
// not panic the process.
func (w *GoWorker) Add(job RequestJob) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		w.subscriber.logger.Debug("dropping hub request, worker stopped",
			"mode", job.Mode, "callback", job.Subscription.Callback)
		return
	}

	w.jobCh <- job
}

// Start will start the worker routines.
func (w *GoWorker) Start() {
	for i := 0; i < w.workerCount; i++ {
		go w.run()
	}
}

// Stop will close the job channel, causing each worker routine to exit.
// It is idempotent.
func (w *GoWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	w.stopped = true
	close(w.jobCh)
}

// run pulls jobs off the job channel and processes them.
func (w *GoWorker) run() {
	for {
		job, ok := <-w.jobCh

		if !ok {
			return
		}

		w.subscriber.dispatch(job)
	}
}
