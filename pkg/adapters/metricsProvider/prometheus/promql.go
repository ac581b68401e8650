package prometheus

import (
	"context"
	"fmt"
	"sync"
	"time"

	ctxUtils "github.com/flexscale/flexscale/pkg/contextutils"
	"github.com/flexscale/flexscale/pkg/logging"
	"github.com/flexscale/flexscale/pkg/telemetry"

	"github.com/prometheus/common/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type QueryResult struct {
	Result   model.Value
	Warnings []string
	Error    error
	QueryID  string
}

type ParallelQueryRequest struct {
	QueryID string
	Query   string
}

// CallDurationStats aggregates recent call execution time for one function.
type CallDurationStats struct {
	TotalSecs float64
	Count     float64
}

func (p *PrometheusProvider) acquireQuerySlot() {
	p.querySemaphore <- struct{}{}
}

func (p *PrometheusProvider) releaseQuerySlot() {
	<-p.querySemaphore
}

func (p *PrometheusProvider) createQueryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.config.QueryTimeout)
}

func (p *PrometheusProvider) ExecuteQueryWithRetry(ctx context.Context, query, queryID string) (model.Value, []string, error) {
	// Put the identifier into context; StartSpan will copy it as an attribute
	ctx = ctxUtils.WithQueryID(ctx, queryID)
	ctx, span := telemetry.StartSpan(ctx, "flexscale/tasks/promql", fmt.Sprintf("promql.query.%s", queryID))
	defer span.End()

	var lastErr error
	var result model.Value
	var warnings []string

	for attempt := range p.config.MaxQueryRetries {
		ctx, cancel := p.createQueryContext(ctx)

		p.acquireQuerySlot()

		logging.Infof(ctx, "Query for %s: %v", queryID, CompressQueryForLogging(query))
		result, warnings, lastErr = p.client.Query(ctx, query, time.Now())

		p.releaseQuerySlot()
		cancel()

		if lastErr == nil {
			if len(warnings) > 0 {
				span.SetAttributes(attribute.Int("warnings.count", len(warnings)))
			}
			return result, warnings, nil
		}

		if attempt < p.config.MaxQueryRetries-1 {
			backoffDuration := p.config.RetryBackoffBase * time.Duration(1<<attempt)
			logging.Infof(ctx, "Query %s failed (attempt %d/%d): %v. Retrying in %v...",
				queryID, attempt+1, p.config.MaxQueryRetries, lastErr, backoffDuration)
			time.Sleep(backoffDuration)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
	}
	return nil, warnings, fmt.Errorf("query %s failed after %d attempts: %w", queryID, p.config.MaxQueryRetries, lastErr)
}

func (p *PrometheusProvider) executeQueriesInParallel(ctx context.Context, requests []ParallelQueryRequest) (map[string]QueryResult, error) {
	results := make(map[string]QueryResult)
	resultsChan := make(chan QueryResult, len(requests))
	var wg sync.WaitGroup

	for _, req := range requests {
		wg.Add(1)
		go func(request ParallelQueryRequest) {
			defer wg.Done()

			result, warnings, err := p.ExecuteQueryWithRetry(ctx, request.Query, request.QueryID)

			resultsChan <- QueryResult{
				Result:   result,
				Warnings: warnings,
				Error:    err,
				QueryID:  request.QueryID,
			}
		}(req)
	}

	wg.Wait()
	close(resultsChan)

	for result := range resultsChan {
		results[result.QueryID] = result
		if result.Error != nil {
			return nil, fmt.Errorf("error executing query %s: %w", result.QueryID, result.Error)
		}
	}

	return results, nil
}

// FetchCallDurations runs the configured sum and count queries and joins the
// resulting vectors by function label. Functions that appear in only one of
// the two vectors are dropped.
func (p *PrometheusProvider) FetchCallDurations(ctx context.Context, sumQuery, countQuery, functionLabel string) (map[string]CallDurationStats, error) {
	results, err := p.executeQueriesInParallel(ctx, []ParallelQueryRequest{
		{QueryID: "call_duration_sum", Query: sumQuery},
		{QueryID: "call_duration_count", Query: countQuery},
	})
	if err != nil {
		return nil, err
	}

	totals, err := vectorByLabel(results["call_duration_sum"].Result, functionLabel)
	if err != nil {
		return nil, fmt.Errorf("sum query: %w", err)
	}
	counts, err := vectorByLabel(results["call_duration_count"].Result, functionLabel)
	if err != nil {
		return nil, fmt.Errorf("count query: %w", err)
	}

	stats := make(map[string]CallDurationStats, len(totals))
	for functionID, total := range totals {
		count, ok := counts[functionID]
		if !ok {
			logging.Infof(ctx, "Function %s has duration sum but no count, skipping", functionID)
			continue
		}
		stats[functionID] = CallDurationStats{TotalSecs: total, Count: count}
	}

	return stats, nil
}

func vectorByLabel(value model.Value, label string) (map[string]float64, error) {
	vector, ok := value.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("expected instant vector, got %s", value.Type())
	}

	out := make(map[string]float64, len(vector))
	for _, sample := range vector {
		name := string(sample.Metric[model.LabelName(label)])
		if name == "" {
			continue
		}
		out[name] = float64(sample.Value)
	}
	return out, nil
}
