package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"interiorDesignAi/internal/design"
	"interiorDesignAi/internal/events"
	"interiorDesignAi/internal/media"
	"interiorDesignAi/internal/vision"
)

// archiveTimeout bounds report writes, which outlive the stage that produced them.
const archiveTimeout = 30 * time.Second

// Publisher receives stage transitions.
type Publisher interface {
	Publish(evt events.Event)
}

// Preferences are the user's inputs besides the images.
type Preferences struct {
	Style        design.Style          `json:"style"`
	CustomItems  string                `json:"custom_items"`
	Instructions string                `json:"instructions"`
	Language     design.Language       `json:"language"`
	Dimensions   design.RoomDimensions `json:"dimensions"`
}

func defaultPreferences() Preferences {
	return Preferences{Style: design.StyleAISuggests, Language: design.LanguageEnglish}
}

// PreferencesPatch updates the fields that are set.
type PreferencesPatch struct {
	Style        *string `json:"style,omitempty"`
	CustomItems  *string `json:"custom_items,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
	Language     *string `json:"language,omitempty"`
	Length       *string `json:"length,omitempty"`
	Width        *string `json:"width,omitempty"`
	Height       *string `json:"height,omitempty"`
}

type viewSlot struct {
	slot
	image vision.ImageResult
}

// Session is one user's redesign workspace: the inputs, the analysis and
// the three lazily generated views.
type Session struct {
	id                    string
	gateway               vision.Gateway
	archive               Archive
	publisher             Publisher
	logger                *zap.Logger
	surfaceEstimateErrors bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	lastUsed  time.Time
	room      media.InlineImage
	furniture []media.InlineImage
	prefs     Preferences
	estimate  slot
	analysis  slot
	result    *design.DesignAnalysis
	reportID  string
	views     map[design.View]*viewSlot
}

func newSession(id string, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:                    id,
		gateway:               opts.Gateway,
		archive:               opts.Archive,
		publisher:             opts.Publisher,
		logger:                opts.Logger.With(zap.String("session_id", id)),
		surfaceEstimateErrors: opts.SurfaceEstimateErrors,
		ctx:                   ctx,
		cancel:                cancel,
		lastUsed:              opts.now(),
		prefs:                 defaultPreferences(),
		estimate:              newSlot(),
		analysis:              newSlot(),
		views:                 make(map[design.View]*viewSlot, 3),
	}
	for _, v := range design.Views() {
		s.views[v] = &viewSlot{slot: newSlot()}
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SetRoomImage replaces the room photo and starts the dimension estimate.
// The current dimensions are cleared first.
func (s *Session) SetRoomImage(img media.InlineImage) (<-chan struct{}, error) {
	if img.Empty() {
		return nil, design.Validationf("the room image is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}

	s.room = img
	s.prefs.Dimensions = design.RoomDimensions{}

	ctx, token, done := s.estimate.begin(s.ctx)
	s.publishLocked(StageEstimate, s.estimate.state)
	s.spawn(done, func() { s.runEstimate(ctx, token, img) })
	return done, nil
}

// ClearRoomImage removes the room photo and abandons a pending estimate.
func (s *Session) ClearRoomImage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	s.room = media.InlineImage{}
	s.estimate.reset()
	s.publishLocked(StageEstimate, s.estimate.state)
	return nil
}

func (s *Session) runEstimate(ctx context.Context, token uint64, room media.InlineImage) {
	dims, err := s.gateway.EstimateDimensions(ctx, room)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if token != s.estimate.token {
			return
		}
		s.logger.Warn("dimension estimate failed", zap.Error(err))
		state := idle()
		if s.surfaceEstimateErrors {
			state = failed(err)
		}
		s.estimate.finish(token, state)
		s.publishLocked(StageEstimate, state)
		return
	}
	if !s.estimate.finish(token, succeeded()) {
		return
	}
	s.prefs.Dimensions = dims
	s.publishLocked(StageEstimate, s.estimate.state)
}

// AddFurniture appends furniture photos in order.
func (s *Session) AddFurniture(imgs ...media.InlineImage) error {
	for i, img := range imgs {
		if img.Empty() {
			return design.Validationf("furniture image %d is empty", i+1)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	s.furniture = append(s.furniture, imgs...)
	return nil
}

// RemoveFurniture drops the furniture photo at index.
func (s *Session) RemoveFurniture(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.furniture) {
		return design.Validationf("no furniture image at index %d", index)
	}
	s.furniture = append(s.furniture[:index:index], s.furniture[index+1:]...)
	return nil
}

// UpdatePreferences applies a patch; unknown styles or languages are rejected
// without changing anything.
func (s *Session) UpdatePreferences(patch PreferencesPatch) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return Preferences{}, err
	}

	next := s.prefs
	if patch.Style != nil {
		style, ok := design.ParseStyle(*patch.Style)
		if !ok {
			return Preferences{}, design.Validationf("unknown style %q", *patch.Style)
		}
		next.Style = style
	}
	if patch.Language != nil {
		lang, ok := design.ParseLanguage(*patch.Language)
		if !ok {
			return Preferences{}, design.Validationf("unknown language %q", *patch.Language)
		}
		next.Language = lang
	}
	if patch.CustomItems != nil {
		next.CustomItems = *patch.CustomItems
	}
	if patch.Instructions != nil {
		next.Instructions = *patch.Instructions
	}
	if patch.Length != nil {
		next.Dimensions.Length = strings.TrimSpace(*patch.Length)
	}
	if patch.Width != nil {
		next.Dimensions.Width = strings.TrimSpace(*patch.Width)
	}
	if patch.Height != nil {
		next.Dimensions.Height = strings.TrimSpace(*patch.Height)
	}
	s.prefs = next
	return next, nil
}

// Analyze starts the analysis. Without a room image it fails before any
// call. Starting clears the previous report and all three views.
func (s *Session) Analyze() (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	if s.room.Empty() {
		return nil, design.Validationf("please upload an image of your room first")
	}

	s.result = nil
	s.reportID = ""
	for _, v := range design.Views() {
		vs := s.views[v]
		vs.reset()
		vs.image = vision.ImageResult{}
		s.publishLocked(Stage(v), vs.state)
	}

	req := vision.AnalysisRequest{
		Room:         s.room,
		Furniture:    append([]media.InlineImage(nil), s.furniture...),
		Style:        s.prefs.Style,
		CustomItems:  s.prefs.CustomItems,
		Instructions: s.prefs.Instructions,
		Dimensions:   s.prefs.Dimensions,
		Language:     s.prefs.Language,
	}

	ctx, token, done := s.analysis.begin(s.ctx)
	s.publishLocked(StageAnalysis, s.analysis.state)
	s.spawn(done, func() { s.runAnalysis(ctx, token, req) })
	return done, nil
}

func (s *Session) runAnalysis(ctx context.Context, token uint64, req vision.AnalysisRequest) {
	result, err := s.gateway.Analyze(ctx, req)

	s.mu.Lock()
	if err != nil {
		if s.analysis.finish(token, failed(err)) {
			s.logger.Warn("analysis failed", zap.Error(err))
			s.publishLocked(StageAnalysis, s.analysis.state)
		}
		s.mu.Unlock()
		return
	}
	if !s.analysis.finish(token, succeeded()) {
		s.mu.Unlock()
		return
	}
	s.result = &result
	s.publishLocked(StageAnalysis, s.analysis.state)
	s.mu.Unlock()

	if s.archive == nil {
		return
	}
	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	reportID, err := s.archive.RecordAnalysis(archiveCtx, AnalysisRecord{
		SessionID:      s.id,
		Language:       req.Language,
		Style:          req.Style,
		CustomItems:    req.CustomItems,
		Instructions:   req.Instructions,
		Dimensions:     req.Dimensions,
		FurnitureCount: len(req.Furniture),
		Analysis:       result,
	})
	if err != nil {
		s.logger.Warn("archive analysis failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	if token == s.analysis.token {
		s.reportID = reportID
	}
	s.mu.Unlock()
}

// ActivateView shows a view, generating it on first activation. Views that
// are pending or already generated are left alone; failed views retry.
func (s *Session) ActivateView(view design.View) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	vs, ok := s.views[view]
	if !ok {
		return nil, design.Validationf("unknown view %q", view)
	}
	if s.result == nil {
		return nil, design.Validationf("run an analysis before generating views")
	}

	switch vs.state.Status {
	case StatusPending, StatusSucceeded:
		return vs.wait(), nil
	}

	if view == design.ViewPhotorealistic && s.room.Empty() {
		err := design.Validationf("the original room image is missing")
		vs.reset()
		vs.state = failed(err)
		s.publishLocked(Stage(view), vs.state)
		return nil, err
	}

	prompt := s.result.AIImagePrompts.For(view)
	room := s.room
	furniture := append([]media.InlineImage(nil), s.furniture...)

	vs.image = vision.ImageResult{}
	ctx, token, done := vs.begin(s.ctx)
	s.publishLocked(Stage(view), vs.state)
	s.spawn(done, func() { s.runView(ctx, token, view, prompt, room, furniture) })
	return done, nil
}

func (s *Session) runView(ctx context.Context, token uint64, view design.View, prompt string, room media.InlineImage, furniture []media.InlineImage) {
	var (
		img vision.ImageResult
		err error
	)
	if view == design.ViewPhotorealistic {
		img, err = s.gateway.Visualize(ctx, vision.VisualizationRequest{Room: room, Furniture: furniture, Prompt: prompt})
	} else {
		img, err = s.gateway.GenerateView(ctx, prompt)
	}

	s.mu.Lock()
	vs := s.views[view]
	if err != nil {
		if vs.finish(token, failed(err)) {
			s.logger.Warn("view generation failed", zap.String("view", string(view)), zap.Error(err))
			s.publishLocked(Stage(view), vs.state)
		}
		s.mu.Unlock()
		return
	}
	if !vs.finish(token, succeeded()) {
		s.mu.Unlock()
		return
	}
	vs.image = img
	reportID := s.reportID
	s.publishLocked(Stage(view), vs.state)
	s.mu.Unlock()

	if s.archive == nil || reportID == "" {
		return
	}
	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := s.archive.RecordView(archiveCtx, reportID, view, img); err != nil {
		s.logger.Warn("archive view failed", zap.String("view", string(view)), zap.Error(err))
	}
}

// ViewImage returns the generated image of a view, if any.
func (s *Session) ViewImage(view design.View) (vision.ImageResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs, ok := s.views[view]
	if !ok || vs.state.Status != StatusSucceeded || vs.image.Data == "" {
		return vision.ImageResult{}, false
	}
	return vs.image, true
}

// Restart cancels everything in flight and clears every input and result.
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}

	s.room = media.InlineImage{}
	s.furniture = nil
	s.prefs = defaultPreferences()
	s.result = nil
	s.reportID = ""
	s.estimate.reset()
	s.analysis.reset()
	s.publishLocked(StageEstimate, s.estimate.state)
	s.publishLocked(StageAnalysis, s.analysis.state)
	for _, v := range design.Views() {
		vs := s.views[v]
		vs.reset()
		vs.image = vision.ImageResult{}
		s.publishLocked(Stage(v), vs.state)
	}
	return nil
}

// Wait blocks until every stage goroutine has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels all work; later calls fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.estimate.stop()
	s.analysis.stop()
	for _, vs := range s.views {
		vs.stop()
	}
	s.mu.Unlock()
	s.cancel()
}

// Snapshot is a read-only view of the session state.
type Snapshot struct {
	ID             string                          `json:"id"`
	HasRoomImage   bool                            `json:"has_room_image"`
	RoomMIMEType   string                          `json:"room_mime_type,omitempty"`
	FurnitureCount int                             `json:"furniture_count"`
	Preferences    Preferences                     `json:"preferences"`
	Stages         map[Stage]StageState            `json:"stages"`
	Analysis       *design.DesignAnalysis          `json:"analysis,omitempty"`
	ReportID       string                          `json:"report_id,omitempty"`
	Views          map[design.View]ViewDescription `json:"views"`
	LastUsed       time.Time                       `json:"last_used"`
}

// ViewDescription summarises one view without its image bytes.
type ViewDescription struct {
	StageState
	MIMEType string `json:"mime_type,omitempty"`
	Bytes    int    `json:"bytes,omitempty"`
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:             s.id,
		HasRoomImage:   !s.room.Empty(),
		RoomMIMEType:   s.room.MIMEType,
		FurnitureCount: len(s.furniture),
		Preferences:    s.prefs,
		Stages: map[Stage]StageState{
			StageEstimate: s.estimate.state,
			StageAnalysis: s.analysis.state,
		},
		ReportID: s.reportID,
		Views:    make(map[design.View]ViewDescription, len(s.views)),
		LastUsed: s.lastUsed,
	}
	if s.result != nil {
		copied := *s.result
		snap.Analysis = &copied
	}
	for v, vs := range s.views {
		snap.Stages[Stage(v)] = vs.state
		desc := ViewDescription{StageState: vs.state}
		if vs.image.Data != "" {
			desc.MIMEType = vs.image.MIME
			desc.Bytes = len(vs.image.Data) * 3 / 4
		}
		snap.Views[v] = desc
	}
	return snap
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) usable() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// spawn runs fn on a tracked goroutine and closes done when it returns.
func (s *Session) spawn(done chan struct{}, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		fn()
	}()
}

func (s *Session) publishLocked(stage Stage, state StageState) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.Event{
		SessionID: s.id,
		Stage:     string(stage),
		Status:    string(state.Status),
		Error:     state.Error,
	})
}
