package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"interiorDesignAi/internal/design"
	"interiorDesignAi/internal/events"
	"interiorDesignAi/internal/media"
	"interiorDesignAi/internal/storage"
)

func strPtr(s string) *string { return &s }

func TestAnalyzeWithoutRoomImageMakesNoCall(t *testing.T) {
	gw := newFakeGateway()
	s := newTestManager(gw).Create()

	done, err := s.Analyze()
	require.Nil(t, done)
	require.ErrorIs(t, err, design.ErrValidation)
	require.Equal(t, "Please upload an image of your room first", Message(err))
	require.Zero(t, gw.count("analyze"))
	require.Equal(t, StatusIdle, s.Snapshot().Stages[StageAnalysis].Status)
}

func TestSetRoomImageEstimatesDimensions(t *testing.T) {
	gw := newFakeGateway()
	s := newTestManager(gw).Create()

	_, err := s.UpdatePreferences(PreferencesPatch{Length: strPtr("9m")})
	require.NoError(t, err)

	done, err := s.SetRoomImage(roomImage(t))
	require.NoError(t, err)
	waitDone(t, done)

	snap := s.Snapshot()
	require.True(t, snap.HasRoomImage)
	require.Equal(t, "image/png", snap.RoomMIMEType)
	require.Equal(t, StatusSucceeded, snap.Stages[StageEstimate].Status)
	require.Equal(t, gw.dims, snap.Preferences.Dimensions)
	require.Equal(t, 1, gw.count("estimate"))
}

func TestSetRoomImageRejectsEmptyPayload(t *testing.T) {
	s := newTestManager(newFakeGateway()).Create()

	_, err := s.SetRoomImage(media.InlineImage{})
	require.ErrorIs(t, err, design.ErrValidation)
	require.False(t, s.Snapshot().HasRoomImage)
}

func TestEstimateFailureIsSilentByDefault(t *testing.T) {
	gw := newFakeGateway()
	gw.dimsErr = design.ErrInvalidResponse
	s := newTestManager(gw).Create()

	done, err := s.SetRoomImage(roomImage(t))
	require.NoError(t, err)
	waitDone(t, done)

	snap := s.Snapshot()
	require.Equal(t, StageState{Status: StatusIdle}, snap.Stages[StageEstimate])
	require.True(t, snap.Preferences.Dimensions.IsZero())
	require.True(t, snap.HasRoomImage)
}

func TestEstimateFailureCanBeSurfaced(t *testing.T) {
	gw := newFakeGateway()
	gw.dimsErr = design.ErrInvalidResponse
	s := newTestManager(gw, func(o *Options) { o.SurfaceEstimateErrors = true }).Create()

	done, err := s.SetRoomImage(roomImage(t))
	require.NoError(t, err)
	waitDone(t, done)

	state := s.Snapshot().Stages[StageEstimate]
	require.Equal(t, StatusFailed, state.Status)
	require.Equal(t, msgInvalidResponse, state.Error)
}

func TestUpdatePreferencesRejectsUnknownValues(t *testing.T) {
	s := newTestManager(newFakeGateway()).Create()

	_, err := s.UpdatePreferences(PreferencesPatch{Style: strPtr("Baroque"), Instructions: strPtr("x")})
	require.ErrorIs(t, err, design.ErrValidation)

	_, err = s.UpdatePreferences(PreferencesPatch{Language: strPtr("fr")})
	require.ErrorIs(t, err, design.ErrValidation)

	prefs := s.Snapshot().Preferences
	require.Equal(t, design.StyleAISuggests, prefs.Style)
	require.Equal(t, design.LanguageEnglish, prefs.Language)
	require.Empty(t, prefs.Instructions)
}

func TestAnalyzePassesPreferencesAndFurniture(t *testing.T) {
	gw := newFakeGateway()
	s := newTestManager(gw).Create()

	done, err := s.SetRoomImage(roomImage(t))
	require.NoError(t, err)
	waitDone(t, done)

	chair := roomImage(t)
	require.NoError(t, s.AddFurniture(chair))
	_, err = s.UpdatePreferences(PreferencesPatch{
		Style:        strPtr("modern"),
		Instructions: strPtr("remove the red armchair"),
		Language:     strPtr("ar"),
	})
	require.NoError(t, err)

	done, err = s.Analyze()
	require.NoError(t, err)
	waitDone(t, done)

	require.Len(t, gw.analyzeReqs, 1)
	req := gw.analyzeReqs[0]
	require.Equal(t, design.StyleModern, req.Style)
	require.Equal(t, "remove the red armchair", req.Instructions)
	require.Equal(t, design.LanguageArabic, req.Language)
	require.Equal(t, gw.dims, req.Dimensions)
	require.Len(t, req.Furniture, 1)

	snap := s.Snapshot()
	require.Equal(t, StatusSucceeded, snap.Stages[StageAnalysis].Status)
	require.NotNil(t, snap.Analysis)
	require.Equal(t, "Calm Modern Lounge", snap.Analysis.RedesignConcept.Title)
	for _, v := range design.Views() {
		require.Equal(t, StatusIdle, snap.Views[v].Status)
	}
}

func TestAnalysisFailureIsReported(t *testing.T) {
	gw := newFakeGateway()
	gw.analyzeErr = errors.Join(design.ErrInvalidResponse, errors.New("bad json"))
	s := newTestManager(gw).Create()

	done, err := s.SetRoomImage(roomImage(t))
	require.NoError(t, err)
	waitDone(t, done)

	done, err = s.Analyze()
	require.NoError(t, err)
	waitDone(t, done)

	snap := s.Snapshot()
	require.Equal(t, StageState{Status: StatusFailed, Error: msgInvalidResponse}, snap.Stages[StageAnalysis])
	require.Nil(t, snap.Analysis)

	_, err = s.ActivateView(design.ViewThreeD)
	require.ErrorIs(t, err, design.ErrValidation)
}

func TestViewsGenerateOncePerAnalysis(t *testing.T) {
	gw := newFakeGateway()
	s := analyzedSession(t, gw)

	for i := 0; i < 2; i++ {
		for _, v := range design.Views() {
			done, err := s.ActivateView(v)
			require.NoError(t, err)
			waitDone(t, done)
		}
	}
	require.Equal(t, 1, gw.count("visualize"))
	require.Equal(t, 2, gw.count("view"))
	require.Equal(t, []string{
		"3D render of a modern lounge",
		"Top-down floor plan of a modern lounge",
	}, gw.viewPrompts)
	require.Equal(t, "Replace the red armchair with a grey lounge chair", gw.visualReqs[0].Prompt)

	img, ok := s.ViewImage(design.ViewTwoD)
	require.True(t, ok)
	require.Equal(t, "image/png", img.MIME)

	done, err := s.Analyze()
	require.NoError(t, err)
	for _, v := range design.Views() {
		require.Equal(t, StatusIdle, s.Snapshot().Views[v].Status)
		_, ok := s.ViewImage(v)
		require.False(t, ok)
	}
	waitDone(t, done)

	done, err = s.ActivateView(design.ViewPhotorealistic)
	require.NoError(t, err)
	waitDone(t, done)
	require.Equal(t, 2, gw.count("visualize"))
}

func TestPendingViewsAreNotRestarted(t *testing.T) {
	gw := newFakeGateway()
	s := analyzedSession(t, gw)
	gate := make(chan struct{})
	gw.set(func(f *fakeGateway) { f.gate = gate })

	photo, err := s.ActivateView(design.ViewPhotorealistic)
	require.NoError(t, err)
	again, err := s.ActivateView(design.ViewPhotorealistic)
	require.NoError(t, err)
	require.True(t, photo == again)

	threeD, err := s.ActivateView(design.ViewThreeD)
	require.NoError(t, err)
	twoD, err := s.ActivateView(design.ViewTwoD)
	require.NoError(t, err)
	again, err = s.ActivateView(design.ViewThreeD)
	require.NoError(t, err)
	require.True(t, threeD == again)

	snap := s.Snapshot()
	for _, v := range design.Views() {
		require.Equal(t, StatusPending, snap.Views[v].Status)
	}
	require.Eventually(t, func() bool {
		return gw.count("visualize") == 1 && gw.count("view") == 2
	}, 2*time.Second, 5*time.Millisecond)

	close(gate)
	waitDone(t, photo)
	waitDone(t, threeD)
	waitDone(t, twoD)

	snap = s.Snapshot()
	for _, v := range design.Views() {
		require.Equal(t, StatusSucceeded, snap.Views[v].Status)
	}
	require.Equal(t, 1, gw.count("visualize"))
	require.Equal(t, 2, gw.count("view"))
	gw.set(func(f *fakeGateway) { require.Zero(t, f.cancelled) })
}

func TestVisualizationFailureIsIsolated(t *testing.T) {
	gw := newFakeGateway()
	gw.visualErr = design.ErrGeneration
	s := analyzedSession(t, gw)

	done, err := s.ActivateView(design.ViewPhotorealistic)
	require.NoError(t, err)
	waitDone(t, done)

	done, err = s.ActivateView(design.ViewThreeD)
	require.NoError(t, err)
	waitDone(t, done)

	snap := s.Snapshot()
	require.Equal(t, StageState{Status: StatusFailed, Error: msgGeneration}, snap.Stages[StagePhotorealistic])
	require.Equal(t, StatusSucceeded, snap.Stages[StageThreeD].Status)
	require.Equal(t, StatusIdle, snap.Stages[StageTwoD].Status)
	require.Equal(t, StatusSucceeded, snap.Stages[StageAnalysis].Status)

	gw.set(func(f *fakeGateway) { f.visualErr = nil })
	done, err = s.ActivateView(design.ViewPhotorealistic)
	require.NoError(t, err)
	waitDone(t, done)
	require.Equal(t, StatusSucceeded, s.Snapshot().Stages[StagePhotorealistic].Status)
	require.Equal(t, 2, gw.count("visualize"))
}

func TestPhotorealisticNeedsRoomImage(t *testing.T) {
	gw := newFakeGateway()
	s := analyzedSession(t, gw)
	require.NoError(t, s.ClearRoomImage())

	_, err := s.ActivateView(design.ViewPhotorealistic)
	require.ErrorIs(t, err, design.ErrValidation)
	require.Equal(t, StatusFailed, s.Snapshot().Stages[StagePhotorealistic].Status)
	require.Zero(t, gw.count("visualize"))
}

func TestNewRoomImageKeepsAnalysis(t *testing.T) {
	gw := newFakeGateway()
	s := analyzedSession(t, gw)

	done, err := s.SetRoomImage(roomImage(t))
	require.NoError(t, err)
	waitDone(t, done)

	snap := s.Snapshot()
	require.NotNil(t, snap.Analysis)
	require.Equal(t, StatusSucceeded, snap.Stages[StageAnalysis].Status)
}

func TestRemoveFurniture(t *testing.T) {
	s := newTestManager(newFakeGateway()).Create()
	require.NoError(t, s.AddFurniture(roomImage(t), roomImage(t)))

	require.ErrorIs(t, s.RemoveFurniture(5), design.ErrValidation)
	require.NoError(t, s.RemoveFurniture(0))
	require.Equal(t, 1, s.Snapshot().FurnitureCount)
}

func TestRestartCancelsAndResetsEveryStage(t *testing.T) {
	gw := newFakeGateway()
	s := analyzedSession(t, gw)

	done, err := s.ActivateView(design.ViewTwoD)
	require.NoError(t, err)
	waitDone(t, done)

	gate := make(chan struct{})
	gw.set(func(f *fakeGateway) { f.gate = gate })
	pending, err := s.ActivateView(design.ViewThreeD)
	require.NoError(t, err)
	require.Equal(t, StatusPending, s.Snapshot().Stages[StageThreeD].Status)

	require.NoError(t, s.Restart())
	waitDone(t, pending)

	snap := s.Snapshot()
	for _, stage := range Stages() {
		require.Equal(t, StageState{Status: StatusIdle}, snap.Stages[stage], string(stage))
	}
	require.False(t, snap.HasRoomImage)
	require.Zero(t, snap.FurnitureCount)
	require.Nil(t, snap.Analysis)
	require.Empty(t, snap.ReportID)
	require.Equal(t, defaultPreferences(), snap.Preferences)
	require.Equal(t, 1, gw.cancelled)
	close(gate)
}

func TestSupersededAnalysisIsDiscarded(t *testing.T) {
	gw := newFakeGateway()
	s := newTestManager(gw).Create()
	done, err := s.SetRoomImage(roomImage(t))
	require.NoError(t, err)
	waitDone(t, done)

	gate := make(chan struct{})
	gw.set(func(f *fakeGateway) { f.gate = gate })
	first, err := s.Analyze()
	require.NoError(t, err)
	second, err := s.Analyze()
	require.NoError(t, err)
	waitDone(t, first)

	require.Equal(t, StatusPending, s.Snapshot().Stages[StageAnalysis].Status)
	close(gate)
	waitDone(t, second)
	require.Equal(t, StatusSucceeded, s.Snapshot().Stages[StageAnalysis].Status)
}

func TestClosedSessionRejectsCalls(t *testing.T) {
	m := newTestManager(newFakeGateway())
	s := m.Create()
	require.NoError(t, m.Delete(s.ID()))

	_, err := s.SetRoomImage(roomImage(t))
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, s.Restart(), ErrClosed)

	_, err = m.Get(s.ID())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStageTransitionsArePublished(t *testing.T) {
	broker := events.NewBroker()
	gw := newFakeGateway()
	s := newTestManager(gw, func(o *Options) { o.Publisher = broker }).Create()
	ch := broker.Subscribe(s.ID())
	defer broker.Unsubscribe(ch)

	done, err := s.SetRoomImage(roomImage(t))
	require.NoError(t, err)
	waitDone(t, done)

	first := <-ch
	second := <-ch
	require.Equal(t, string(StageEstimate), first.Stage)
	require.Equal(t, string(StatusPending), first.Status)
	require.Equal(t, string(StatusSucceeded), second.Status)
	require.Equal(t, s.ID(), second.SessionID)
}

func TestAnalysisAndViewsAreArchived(t *testing.T) {
	ctx := context.Background()
	reports := storage.NewInMemoryStore()
	renders, err := media.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	gw := newFakeGateway()
	m := newTestManager(gw, func(o *Options) { o.Archive = NewReportArchive(reports, renders, nil) })
	s := m.Create()
	done, err := s.SetRoomImage(roomImage(t))
	require.NoError(t, err)
	waitDone(t, done)
	_, err = s.UpdatePreferences(PreferencesPatch{Style: strPtr("Minimalist")})
	require.NoError(t, err)

	done, err = s.Analyze()
	require.NoError(t, err)
	waitDone(t, done)

	reportID := s.Snapshot().ReportID
	require.NotEmpty(t, reportID)

	done, err = s.ActivateView(design.ViewThreeD)
	require.NoError(t, err)
	waitDone(t, done)

	report, err := reports.GetReport(ctx, reportID)
	require.NoError(t, err)
	require.Equal(t, s.ID(), report.SessionID)
	require.Equal(t, design.StyleMinimalist, report.Style)
	require.Equal(t, "Calm Modern Lounge", report.Analysis.RedesignConcept.Title)
	require.Contains(t, report.Renders, design.ViewThreeD)
	key := report.Renders[design.ViewThreeD].Key
	require.True(t, strings.HasPrefix(key, reportID+"/3d-"), key)
	require.True(t, strings.HasSuffix(key, ".png"), key)
	require.Equal(t, "image/png", report.Renders[design.ViewThreeD].MIMEType)
}

func TestManagerSweepsIdleSessions(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(newFakeGateway(), func(o *Options) {
		o.TTL = time.Hour
		o.now = func() time.Time { return now }
	})
	stale := m.Create()
	fresh := m.Create()

	now = now.Add(45 * time.Minute)
	_, err := m.Get(fresh.ID())
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	require.Equal(t, 1, m.Sweep())
	require.Equal(t, 1, m.Len())

	_, err = m.Get(stale.ID())
	require.ErrorIs(t, err, ErrNotFound)
	_, err = stale.Analyze()
	require.ErrorIs(t, err, ErrClosed)
}

func TestManagerCloseWaitsForStages(t *testing.T) {
	gw := newFakeGateway()
	gw.gate = make(chan struct{})
	m := newTestManager(gw)
	s := m.Create()

	done, err := s.SetRoomImage(roomImage(t))
	require.NoError(t, err)

	m.Close()
	waitDone(t, done)
	require.Zero(t, m.Len())
	require.Equal(t, 1, gw.cancelled)
}

func analyzedSession(t *testing.T, gw *fakeGateway) *Session {
	t.Helper()
	s := newTestManager(gw).Create()
	done, err := s.SetRoomImage(roomImage(t))
	require.NoError(t, err)
	waitDone(t, done)
	done, err = s.Analyze()
	require.NoError(t, err)
	waitDone(t, done)
	require.Equal(t, StatusSucceeded, s.Snapshot().Stages[StageAnalysis].Status)
	return s
}
