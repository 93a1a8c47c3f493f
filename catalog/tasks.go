package catalog

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	ayumerna "github.com/Lovelumine/AYumeRNA"
	"github.com/Lovelumine/AYumeRNA/envelope"
	"github.com/Lovelumine/AYumeRNA/policy"
	"github.com/Lovelumine/AYumeRNA/router"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
)

var (
	// ErrTaskInProgress is returned by Tasks when the user already has a
	// task of the same kind running.
	ErrTaskInProgress = errors.New("a task of this kind is already running")
	ErrTasksDisabled  = errors.New("task service is not configured")
)

// Task kinds, one per submission endpoint.
const (
	KindSample         = "sample"
	KindTrain          = "train"
	KindCMBuild        = "cmbuild"
	KindOneHot         = "onehot"
	KindRfam           = "rfam"
	KindSplitOneHot    = "split_onehot"
	KindGenerateWeight = "generate_weight"
	KindSequence       = "sequence"
)

// Tasks queues RNA processing jobs. Storage of the uploaded files and the
// queue itself live behind this interface.
type Tasks interface {
	Submit(ctx context.Context, task Task) (*Receipt, error)
}

// Task is one submission: the uploaded files keyed by form field and the
// scalar parameters of its kind.
type Task struct {
	Kind        string
	UserID      string
	Username    string
	Files       map[string]*multipart.FileHeader
	Params      any
	SubmittedAt time.Time
}

// FileNames returns the form fields of the uploaded files in sorted order.
func (t Task) FileNames() []string {
	names := make([]string, 0, len(t.Files))
	for name := range t.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Receipt struct {
	TaskID string `json:"taskId" description:"identifier of the queued task"`
	// Topic is where progress messages for the task are published.
	Topic   string `json:"topic,omitempty" description:"progress topic"`
	Message string `json:"message" description:"submission status"`
}

type ReceiptReply struct {
	Code      int       `json:"code"`
	Data      Receipt   `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type taskForm interface {
	files() map[string]*multipart.FileHeader
}

type SampleForm struct {
	ConfigFile *multipart.FileHeader `form:"config_file" validate:"required" description:"model configuration (yaml)"`
	CkptFile   *multipart.FileHeader `form:"ckpt_file" validate:"required" description:"model checkpoint"`
	CMFile     *multipart.FileHeader `form:"cm_file" validate:"required" description:"covariance model"`
	NSamples   int                   `form:"n_samples" validate:"required,min=1" description:"number of sequences to sample"`
}

type SampleParams struct {
	NSamples int `json:"n_samples"`
}

func (f SampleForm) files() map[string]*multipart.FileHeader {
	return map[string]*multipart.FileHeader{
		"config_file": f.ConfigFile,
		"ckpt_file":   f.CkptFile,
		"cm_file":     f.CMFile,
	}
}

type TrainForm struct {
	XTrain *multipart.FileHeader `form:"x_train" validate:"required" description:"training set"`
	WTrain *multipart.FileHeader `form:"w_train" validate:"required" description:"training weights"`
	XValid *multipart.FileHeader `form:"x_valid" validate:"required" description:"validation set"`
	WValid *multipart.FileHeader `form:"w_valid" validate:"required" description:"validation weights"`
}

func (f TrainForm) files() map[string]*multipart.FileHeader {
	return map[string]*multipart.FileHeader{
		"x_train": f.XTrain,
		"w_train": f.WTrain,
		"x_valid": f.XValid,
		"w_valid": f.WValid,
	}
}

type CMBuildForm struct {
	StockholmFile *multipart.FileHeader `form:"stockholmFile" validate:"required" description:"Stockholm alignment"`
}

func (f CMBuildForm) files() map[string]*multipart.FileHeader {
	return map[string]*multipart.FileHeader{"stockholmFile": f.StockholmFile}
}

type OneHotForm struct {
	FastaFile *multipart.FileHeader `form:"fastaFile" validate:"required" description:"sequences (FASTA)"`
	CMFile    *multipart.FileHeader `form:"cmFile" validate:"required" description:"covariance model"`
}

func (f OneHotForm) files() map[string]*multipart.FileHeader {
	return map[string]*multipart.FileHeader{
		"fastaFile": f.FastaFile,
		"cmFile":    f.CMFile,
	}
}

type RfamForm struct {
	RfamAcc      string                `form:"rfamAcc" validate:"required" description:"Rfam accession, e.g. RF00005"`
	SeedFile     *multipart.FileHeader `form:"seedFile" validate:"required" description:"seed alignment"`
	OriginalFile *multipart.FileHeader `form:"originalFile" validate:"required" description:"original sequences"`
}

type RfamParams struct {
	RfamAcc string `json:"rfamAcc"`
}

func (f RfamForm) files() map[string]*multipart.FileHeader {
	return map[string]*multipart.FileHeader{
		"seedFile":     f.SeedFile,
		"originalFile": f.OriginalFile,
	}
}

type SplitOneHotForm struct {
	H5File      *multipart.FileHeader `form:"h5File" validate:"required" description:"one-hot encoded data (h5)"`
	TrainRatio  float64               `form:"trainRatio" default:"0.7" validate:"gt=0,lt=1" description:"share of the training split"`
	RandomState int                   `form:"randomState" default:"42" description:"shuffle seed"`
}

type SplitOneHotParams struct {
	TrainRatio  float64 `json:"trainRatio"`
	RandomState int     `json:"randomState"`
}

func (f SplitOneHotForm) files() map[string]*multipart.FileHeader {
	return map[string]*multipart.FileHeader{"h5File": f.H5File}
}

type GenerateWeightForm struct {
	H5File     *multipart.FileHeader `form:"h5File" validate:"required" description:"one-hot encoded data (h5)"`
	Mode       string                `form:"mode" default:"cm" description:"weighting mode"`
	Threshold  float64               `form:"threshold" default:"0.1" validate:"gt=0" description:"identity threshold"`
	NSamples   int                   `form:"nSamples" default:"10000" validate:"min=1" description:"sample count"`
	CPU        int                   `form:"cpu" default:"4" validate:"min=1" description:"worker processes"`
	PrintEvery int                   `form:"printEvery" default:"500" validate:"min=1" description:"progress interval"`
}

type GenerateWeightParams struct {
	Mode       string  `json:"mode"`
	Threshold  float64 `json:"threshold"`
	NSamples   int     `json:"nSamples"`
	CPU        int     `json:"cpu"`
	PrintEvery int     `json:"printEvery"`
}

func (f GenerateWeightForm) files() map[string]*multipart.FileHeader {
	return map[string]*multipart.FileHeader{"h5File": f.H5File}
}

type SequenceForm struct {
	TemplateFile *multipart.FileHeader `form:"templateFile" validate:"required" description:"template sequences"`
	TestFile     *multipart.FileHeader `form:"testFile" validate:"required" description:"sequences to evaluate"`
}

func (f SequenceForm) files() map[string]*multipart.FileHeader {
	return map[string]*multipart.FileHeader{
		"templateFile": f.TemplateFile,
		"testFile":     f.TestFile,
	}
}

// NoParams is the parameter set of kinds that only take files.
type NoParams struct{}

func mountTasks(e *ayumerna.Engine, tasks Tasks) {
	if tasks == nil {
		tasks = disabledTasks{}
	}

	mountTask(e, KindSample, "Submit a sampling task",
		router.NewRouter(submit[SampleForm, SampleParams](KindSample, tasks)))
	mountTask(e, KindTrain, "Submit a training task",
		router.NewRouter(submit[TrainForm, NoParams](KindTrain, tasks)))
	mountTask(e, KindCMBuild, "Build a covariance model",
		router.NewRouter(submit[CMBuildForm, NoParams](KindCMBuild, tasks)))
	mountTask(e, KindOneHot, "One-hot encode sequences",
		router.NewRouter(submit[OneHotForm, NoParams](KindOneHot, tasks)))
	mountTask(e, KindRfam, "Prepare an Rfam family",
		router.NewRouter(submit[RfamForm, RfamParams](KindRfam, tasks)))
	mountTask(e, KindSplitOneHot, "Split one-hot data into train and validation sets",
		router.NewRouter(submit[SplitOneHotForm, SplitOneHotParams](KindSplitOneHot, tasks)))
	mountTask(e, KindGenerateWeight, "Generate sequence weights",
		router.NewRouter(submit[GenerateWeightForm, GenerateWeightParams](KindGenerateWeight, tasks)))
	mountTask(e, KindSequence, "Evaluate generated sequences",
		router.NewRouter(submit[SequenceForm, NoParams](KindSequence, tasks)))
}

// mountTask registers POST /<kind>/process. Task routes inherit the global
// bearer requirement.
func mountTask(e *ayumerna.Engine, kind, summary string, r *router.Router) {
	for _, option := range []router.Option{
		router.Tags(kind),
		router.Summary(summary),
		router.OperationID(kind + "Process"),
		router.ContentType("multipart/form-data", "application/json"),
		router.Resp(router.Response{
			"200": router.ResponseItem{Description: "task queued", Model: &ReceiptReply{}},
		}),
		router.Resp(errorResponses(
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
		)),
	} {
		option(r)
	}
	e.POST("/"+kind+"/process", r)
}

// submit checks the uploaded files, copies the scalar fields of the form
// into P and hands the task to tasks on behalf of the authenticated user.
func submit[F taskForm, P any](kind string, tasks Tasks) func(*gin.Context, F) {
	return func(c *gin.Context, form F) {
		principal, ok := policy.PrincipalFrom(c)
		if !ok {
			envelope.Abort(c, http.StatusUnauthorized, "invalid token or unauthenticated user", nil)
			return
		}

		files := form.files()
		for name, fh := range files {
			if fh == nil || fh.Size == 0 {
				envelope.Abort(c, http.StatusBadRequest,
					fmt.Sprintf("file %s must be uploaded and not empty", name), nil)
				return
			}
		}

		var params P
		if err := copier.Copy(&params, &form); err != nil {
			_ = c.Error(err)
			envelope.Abort(c, http.StatusInternalServerError, "internal server error", nil)
			return
		}

		username, _ := principal.Claims["username"].(string)
		task := Task{
			Kind:        kind,
			UserID:      principal.ID,
			Username:    username,
			Files:       files,
			Params:      params,
			SubmittedAt: time.Now(),
		}
		receipt, err := tasks.Submit(c.Request.Context(), task)
		switch {
		case err == nil:
			envelope.Write(c, http.StatusOK, receipt)
		case errors.Is(err, ErrTaskInProgress):
			envelope.Abort(c, http.StatusTooManyRequests, "a task is already running, try again later", nil)
		case errors.Is(err, ErrTasksDisabled):
			envelope.Abort(c, http.StatusNotImplemented, "task service unavailable", nil)
		default:
			_ = c.Error(err)
			envelope.Abort(c, http.StatusInternalServerError, "internal server error", nil)
		}
	}
}

type disabledTasks struct{}

func (disabledTasks) Submit(context.Context, Task) (*Receipt, error) {
	return nil, ErrTasksDisabled
}
