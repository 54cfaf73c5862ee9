package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"shield/shield-pool/logging"
)

// RunningJob tracks a background task through its shutdown handshake:
// RequestStop triggers the task's shutdown hook and AwaitStop blocks until
// the hook has finished.
type RunningJob struct {
	stop   chan struct{}
	closed chan struct{}
}

func (job *RunningJob) RequestStop() {
	close(job.stop)
}

func (job *RunningJob) AwaitStop() {
	<-job.closed
}

func SpawnJob(start func(), shutdown func()) RunningJob {
	job := RunningJob{stop: make(chan struct{}), closed: make(chan struct{})}
	go start()
	go func() {
		<-job.stop
		shutdown()
		close(job.closed)
	}()
	return job
}

// CombineJobs folds several jobs into one handle that stops and awaits all
// of them.
func CombineJobs(jobs ...RunningJob) RunningJob {
	return SpawnJob(func() {}, func() {
		for _, job := range jobs {
			job.RequestStop()
		}
		for _, job := range jobs {
			job.AwaitStop()
		}
	})
}

// spawnServerJob runs an http.Server as a job whose shutdown hook drains
// in-flight requests before reporting completion.
func spawnServerJob(server *http.Server, label string) RunningJob {
	start := func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("%s failed: %s", label, err))
		}
	}
	shutdown := func() {
		logging.Logger().Info().Msgf("shutting down %s", label)
		if err := server.Shutdown(context.Background()); err != nil {
			logging.Logger().Error().Err(err).Msgf("error when shutting down %s", label)
		}
		logging.Logger().Info().Msgf("%s shut down", label)
	}
	return SpawnJob(start, shutdown)
}
