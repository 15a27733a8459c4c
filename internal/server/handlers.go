package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"vegamdb"
	pkgerrors "vegamdb/pkg/errors"
	"vegamdb/pkg/logger"

	"github.com/gin-gonic/gin"
)

// statusFor maps core errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pkgerrors.ErrDimensionMismatch),
		errors.Is(err, pkgerrors.ErrInvalidShape),
		errors.Is(err, pkgerrors.ErrInsufficientData),
		errors.Is(err, pkgerrors.ErrParamsKindMismatch):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrCorruptIndex):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, endpoint string, err error) {
	status := statusFor(err)
	s.metrics.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) done(c *gin.Context, endpoint string, body interface{}) {
	s.metrics.requestsTotal.WithLabelValues(endpoint, "200").Inc()
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleHealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		st := s.db.Stats()
		s.done(c, "stats", statsResponse{
			Size:      st.Size,
			Dimension: st.Dimension,
			IndexKind: st.IndexKind,
			Built:     st.Built,
		})
	}
}

func (s *Server) handleAddVector() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addVectorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := s.db.AddVector(req.Vector)
		if err != nil {
			s.fail(c, "add", err)
			return
		}
		s.cache.Purge()
		s.metrics.vectorsAdded.Inc()
		s.done(c, "add", addVectorResponse{ID: id})
	}
}

func (s *Server) handleAddBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rows, err := decodeRows(req.Vectors)
		if err != nil {
			s.fail(c, "add_batch", err)
			return
		}
		ids, err := s.db.AddVectorBatch(rows)
		if err != nil {
			s.fail(c, "add_batch", err)
			return
		}
		s.cache.Purge()
		s.metrics.vectorsAdded.Add(float64(len(ids)))
		s.done(c, "add_batch", addBatchResponse{IDs: ids})
	}
}

// decodeRows accepts a 1-D vector (one row) or a 2-D matrix. Anything deeper
// nested fails with ErrInvalidShape, mirroring the batch-add contract.
func decodeRows(raw json.RawMessage) ([][]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		if len(flat) == 0 {
			return nil, nil
		}
		return [][]float32{flat}, nil
	}
	var rows [][]float32
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}
	return nil, pkgerrors.ErrInvalidShape
}

func (s *Server) handleBuildIndex() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req buildIndexRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		switch req.Kind {
		case "flat":
			s.db.UseFlatIndex()
		case "ivf":
			s.db.UseIVFIndex(req.NClusters, req.MaxIters, req.NProbe)
		case "annoy":
			usePQ := true
			if req.UsePriorityQueue != nil {
				usePQ = *req.UsePriorityQueue
			}
			s.db.UseAnnoyIndex(req.NumTrees, req.KLeaf, usePQ)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown index kind %q", req.Kind)})
			return
		}
		if err := s.db.BuildIndex(); err != nil {
			s.fail(c, "index", err)
			return
		}
		s.cache.Purge()
		logger.Info("Built index", "kind", req.Kind, "size", s.db.Size())
		s.done(c, "index", gin.H{"status": "built", "kind": req.Kind})
	}
}

func (s *Server) handleSearch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		params, err := searchParamsFor(&req)
		if err != nil {
			s.fail(c, "search", err)
			return
		}

		key := cacheKey(&req)
		if cached, ok := s.cache.Get(key); ok {
			s.done(c, "search", cached)
			return
		}

		start := time.Now()
		var res vegamdb.SearchResult
		if params != nil {
			res, err = s.db.Search(req.Query, req.K, params)
		} else {
			res, err = s.db.Search(req.Query, req.K)
		}
		if err != nil {
			s.fail(c, "search", err)
			return
		}
		s.metrics.searchDuration.Observe(time.Since(start).Seconds())

		resp := searchResponse{IDs: res.IDs, Distances: res.Distances}
		s.cache.Add(key, resp)
		s.done(c, "search", resp)
	}
}

// searchParamsFor builds the per-query params union from the optional
// request fields. Mixing IVF and Annoy overrides in one request is rejected
// up front; a wrong-kind override for the active index is rejected by the
// core as ErrParamsKindMismatch.
func searchParamsFor(req *searchRequest) (vegamdb.SearchParams, error) {
	ivf := req.NProbe > 0
	annoy := req.SearchK > 0 || req.UsePriorityQueue != nil
	switch {
	case ivf && annoy:
		return nil, pkgerrors.ErrParamsKindMismatch
	case ivf:
		return vegamdb.IVFSearchParams{NProbe: req.NProbe}, nil
	case annoy:
		usePQ := true
		if req.UsePriorityQueue != nil {
			usePQ = *req.UsePriorityQueue
		}
		return vegamdb.AnnoyIndexParams{SearchK: req.SearchK, UsePriorityQueue: usePQ}, nil
	default:
		return nil, nil
	}
}

// cacheKey hashes the full request so any parameter change misses the cache.
func cacheKey(req *searchRequest) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *Server) handleSave() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := s.pathFrom(c)
		if path == "" {
			return
		}
		if err := s.db.Save(path); err != nil {
			s.fail(c, "save", err)
			return
		}
		logger.Info("Saved database", "path", path)
		s.done(c, "save", gin.H{"status": "saved", "path": path})
	}
}

func (s *Server) handleLoad() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := s.pathFrom(c)
		if path == "" {
			return
		}
		if err := s.db.Load(path); err != nil {
			s.fail(c, "load", err)
			return
		}
		s.cache.Purge()
		logger.Info("Loaded database", "path", path, "size", s.db.Size())
		s.done(c, "load", gin.H{"status": "loaded", "path": path})
	}
}

// pathFrom resolves the target file for save/load: the request body may name
// one, otherwise the configured data path applies. Writes the error response
// itself and returns "" when neither is available.
func (s *Server) pathFrom(c *gin.Context) string {
	var req pathRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return ""
		}
	}
	if req.Path != "" {
		return req.Path
	}
	if s.dataPath != "" {
		return s.dataPath
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "no path given and no data_path configured"})
	return ""
}
