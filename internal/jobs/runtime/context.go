package runtime

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/data/repos"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// Context is the capability handle for one claimed job run: the live row,
// the repo that moves it through its lifecycle and the DB for business
// reads. Exactly one of Succeed or Fail should end a run.
type Context struct {
	Ctx context.Context
	DB  *gorm.DB
	Job *types.JobRun
	Log *logger.Logger

	repo repos.JobRunRepo
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, baseLog *logger.Logger) *Context {
	log := baseLog
	if job != nil {
		log = baseLog.With("job_id", job.ID, "job_type", job.JobType)
	}
	return &Context{
		Ctx:  ctx,
		DB:   db,
		Job:  job,
		Log:  log,
		repo: repo,
	}
}

// DecodePayload unmarshals the job payload into v. An empty payload leaves
// v at its zero value, which every handler treats as "use defaults".
func (c *Context) DecodePayload(v interface{}) error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(c.Job.Payload, v)
}

// Heartbeat tells the queue this run is still alive. The worker calls it on
// a timer; long handlers may also call it between phases.
func (c *Context) Heartbeat() error {
	if c.Job == nil {
		return nil
	}
	return c.repo.Heartbeat(c.Ctx, nil, c.Job.ID)
}

// Succeed finalizes the run with a JSON result. A false return means the
// row was no longer running, usually because a stale-claim race finished
// it elsewhere first.
func (c *Context) Succeed(result interface{}) bool {
	if c.Job == nil {
		return false
	}
	var raw datatypes.JSON
	if result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			c.Log.Warn("job result not serializable", "error", err)
		} else {
			raw = datatypes.JSON(encoded)
		}
	}
	ok, err := c.repo.MarkSucceeded(c.Ctx, nil, c.Job.ID, raw)
	if err != nil {
		c.Log.Error("mark succeeded failed", "error", err)
		return false
	}
	if !ok {
		c.Log.Warn("job was not running at completion")
	}
	return ok
}

// Fail records the error and releases the run for retry or burial,
// depending on the attempt count.
func (c *Context) Fail(err error) bool {
	if c.Job == nil {
		return false
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	ok, markErr := c.repo.MarkFailed(c.Ctx, nil, c.Job.ID, msg)
	if markErr != nil {
		c.Log.Error("mark failed failed", "error", markErr)
		return false
	}
	return ok
}
