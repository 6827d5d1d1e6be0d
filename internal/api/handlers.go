package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/dashboard"
	"github.com/selivandex/sentiment-fusion/internal/indicators"
	"github.com/selivandex/sentiment-fusion/internal/orchestrator"
	"github.com/selivandex/sentiment-fusion/internal/portfolio"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

const maxDays = 365

type addPortfolioRequest struct {
	Code string `json:"stock_code"`
}

type runResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
	Code   string `json:"stock_code"`
}

func success(c echo.Context, code int, data interface{}) error {
	return c.JSON(code, map[string]interface{}{"status": "success", "data": data})
}

// validateCode rejects instrument codes that are not six digits
func validateCode(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !portfolio.ValidCode(c.Param("code")) {
			return echo.NewHTTPError(http.StatusBadRequest, portfolio.ErrInvalidCode.Error())
		}
		return next(c)
	}
}

// queryDays parses ?days= within [1, maxDays], returning def when absent
func queryDays(c echo.Context, def int) (int, error) {
	raw := c.QueryParam("days")
	if raw == "" {
		return def, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxDays {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "days must be an integer between 1 and 365")
	}
	return days, nil
}

// queryWeight overrides base with ?name= when present
func queryWeight(c echo.Context, name string, base float64) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return base, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a number")
	}
	return v, nil
}

// ========== Portfolio & Settings ==========

func (s *Server) listPortfolio(c echo.Context) error {
	items, err := s.deps.Portfolios.List(c.Request().Context(), UserID(c))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, items)
}

func (s *Server) addPortfolio(c echo.Context) error {
	var req addPortfolioRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	item, err := s.deps.Portfolios.Add(c.Request().Context(), UserID(c), req.Code)
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, item)
}

func (s *Server) removePortfolio(c echo.Context) error {
	if err := s.deps.Portfolios.Remove(c.Request().Context(), UserID(c), c.Param("code")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) getSettings(c echo.Context) error {
	w, err := s.deps.Portfolios.GetWeights(c.Request().Context(), UserID(c))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, w)
}

func (s *Server) putSettings(c echo.Context) error {
	var w models.WeightConfig
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := w.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.deps.Portfolios.PutWeights(c.Request().Context(), UserID(c), w); err != nil {
		return err
	}
	return success(c, http.StatusOK, w)
}

// ========== Instrument Views ==========

func (s *Server) instrumentInfo(c echo.Context) error {
	info, err := s.deps.Dashboard.Info(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, info)
}

func (s *Server) fusedSeries(c echo.Context) error {
	ctx := c.Request().Context()

	days, err := queryDays(c, dashboard.DefaultFusedDays)
	if err != nil {
		return err
	}

	weights, err := s.deps.Portfolios.GetWeights(ctx, UserID(c))
	if err != nil {
		return err
	}
	if weights.NewsWeight, err = queryWeight(c, "news_weight", weights.NewsWeight); err != nil {
		return err
	}
	if weights.ForumWeight, err = queryWeight(c, "forum_weight", weights.ForumWeight); err != nil {
		return err
	}
	if err := weights.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	points, err := s.deps.Dashboard.FusedSeries(ctx, c.Param("code"), days, weights)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, points)
}

func (s *Server) news(c echo.Context) error {
	docs, err := s.deps.Dashboard.News(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, docs)
}

func (s *Server) indicatorReport(c echo.Context) error {
	days, err := queryDays(c, indicators.DefaultDays)
	if err != nil {
		return err
	}

	report, err := s.deps.Indicators.Report(c.Request().Context(), c.Param("code"), days)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, report)
}

// ========== Update Runs ==========

func (s *Server) startUpdate(c echo.Context) error {
	return s.startRun(c, false)
}

func (s *Server) startCleanup(c echo.Context) error {
	return s.startRun(c, true)
}

// startRun launches the run on the server's run context so it outlives the request
func (s *Server) startRun(c echo.Context, withCleanup bool) error {
	code := c.Param("code")

	runID, err := s.deps.Runner.Start(s.deps.RunContext, code, withCleanup)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, runResponse{Status: "accepted", RunID: runID, Code: code})
}

func (s *Server) progress(c echo.Context) error {
	code := c.Param("code")

	snap, ok := s.deps.Progress.Latest(code)
	if !ok {
		snap = orchestrator.Snapshot{Instrument: code, State: orchestrator.StateIdle}
	}
	return success(c, http.StatusOK, snap)
}

// progressStream never returns the upgrade error; the upgrader has already
// written the HTTP response
func (s *Server) progressStream(c echo.Context) error {
	if err := s.deps.Progress.ServeWS(c.Response(), c.Request(), c.Param("code")); err != nil {
		logger.Debug("progress stream upgrade failed", zap.String("stock_code", c.Param("code")), zap.Error(err))
	}
	return nil
}
