package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"session-scribe-go/internal/artifact"
	"session-scribe-go/internal/backend"
	"session-scribe-go/internal/config"
	"session-scribe-go/internal/knowledge"
	"session-scribe-go/internal/logger"
	"session-scribe-go/internal/roster"
	"session-scribe-go/internal/scenes"
	"session-scribe-go/internal/summary"
	"session-scribe-go/internal/workflow"
)

type scheduleRequest struct {
	CampaignID    int    `json:"campaign_id"`
	EpisodeID     int    `json:"episode_id"`
	AudioFile     string `json:"audio_file,omitempty"`
	TranscriptRef string `json:"transcript_ref,omitempty"`
}

type scheduleResponse struct {
	InstanceID string          `json:"instance_id"`
	Status     workflow.Status `json:"status"`
}

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "session-scribe-go").Info("starting service")

	cfg, err := config.FromEnv()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	store, err := artifact.NewFSStore(cfg.DataDir)
	if err != nil {
		log.WithError(err).Fatal("failed to open artifact store")
	}
	audio, err := artifact.NewFSStore(cfg.AudioDir)
	if err != nil {
		log.WithError(err).Fatal("failed to open audio store")
	}

	transcriber, err := backend.NewTranscriber(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build transcriber")
	}
	completer, err := backend.NewCompleter(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build completer")
	}

	segmenter := &scenes.Segmenter{
		GapSeconds:         cfg.SceneGapSeconds,
		MinDurationSeconds: cfg.SceneMinDuration,
		MinUtterances:      cfg.SceneMinUtterances,
	}
	if cfg.TopicShiftProbe {
		segmenter.TopicShift = scenes.CompleterTopicShift(completer)
		log.Info("topic-shift probe enabled")
	}

	// Roster is cosmetic; run without it rather than refuse to start.
	var characters *roster.Roster
	if cfg.RosterPath != "" {
		characters, err = roster.Load(cfg.RosterPath)
		if err != nil {
			log.WithError(err).Warn("roster unavailable, keeping diarized speaker ids")
			characters = nil
		} else {
			log.WithField("roster_path", cfg.RosterPath).WithField("speakers", characters.Len()).Info("roster loaded")
		}
	}

	graph := knowledge.New(cfg.GraphURL, cfg.GraphAPIKey, log)

	rt := workflow.NewRuntime(store, log)
	pipelines := &workflow.Pipelines{
		Store:       store,
		Audio:       audio,
		Transcriber: transcriber,
		Segmenter:   segmenter,
		Summarizer:  summary.New(completer, cfg.Language),
		Publisher:   graph,
		Roster:      characters,
		Language:    cfg.Language,
	}

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).Info("health check")
		fmt.Fprint(w, "ok")
	})

	schedule := func(w http.ResponseWriter, r *http.Request, name string, fn workflow.WorkflowFunc, check func(scheduleRequest) error) {
		reqLog := logger.New().WithRequest(r).WithField("handler", name)

		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			reqLog.WithError(err).Warn("bad request body")
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.CampaignID < 1 || req.EpisodeID < 1 {
			http.Error(w, "campaign_id and episode_id must be positive", http.StatusBadRequest)
			return
		}
		if check != nil {
			if err := check(req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		run, err := rt.Schedule(name, workflow.RunInput{
			CampaignID:    req.CampaignID,
			EpisodeID:     req.EpisodeID,
			AudioFilePath: req.AudioFile,
			TranscriptRef: req.TranscriptRef,
		}, fn)
		if err != nil {
			reqLog.WithError(err).Error("failed to schedule run")
			http.Error(w, "failed to schedule run", http.StatusInternalServerError)
			return
		}
		reqLog.WithField("instance_id", run.InstanceID).Info("run scheduled")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(scheduleResponse{InstanceID: run.InstanceID, Status: run.Status})
	}

	mux.HandleFunc("POST /workflows/audio", func(w http.ResponseWriter, r *http.Request) {
		schedule(w, r, workflow.WorkflowAudioToSummary, pipelines.AudioToSummary, func(req scheduleRequest) error {
			if req.AudioFile == "" {
				return errors.New("audio_file is required")
			}
			return nil
		})
	})
	mux.HandleFunc("POST /workflows/transcript", func(w http.ResponseWriter, r *http.Request) {
		schedule(w, r, workflow.WorkflowTranscriptToSummary, pipelines.TranscriptToSummary, nil)
	})
	mux.HandleFunc("POST /workflows/campaign", func(w http.ResponseWriter, r *http.Request) {
		schedule(w, r, workflow.WorkflowCampaignRollup, pipelines.CampaignRollup, nil)
	})

	mux.HandleFunc("GET /workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "status")
		run, err := rt.Status(r.PathValue("id"))
		if errors.Is(err, artifact.ErrNotFound) {
			http.Error(w, "unknown instance", http.StatusNotFound)
			return
		}
		if err != nil {
			reqLog.WithError(err).Error("status lookup failed")
			http.Error(w, "status lookup failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(run)
	})

	mux.HandleFunc("GET /query", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "query")

		question := r.URL.Query().Get("q")
		campaignID, err := strconv.Atoi(r.URL.Query().Get("campaign_id"))
		if question == "" || err != nil || campaignID < 1 {
			http.Error(w, "q and campaign_id are required", http.StatusBadRequest)
			return
		}
		var episodeID *int
		if raw := r.URL.Query().Get("episode_id"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				http.Error(w, "invalid episode_id", http.StatusBadRequest)
				return
			}
			episodeID = &n
		}

		answer, err := graph.Query(r.Context(), question, campaignID, episodeID)
		if err != nil {
			reqLog.WithError(err).Warn("graph query failed")
			http.Error(w, "graph query failed", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"answer": answer})
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", cfg.HTTPAddr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}
