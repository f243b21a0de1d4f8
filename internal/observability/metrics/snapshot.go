package metrics

import (
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Snapshot is the admin view of the assistant counters.
type Snapshot struct {
	QueriesByType    map[string]int64 `json:"queries_by_type"`
	QueriesByUrgency map[string]int64 `json:"queries_by_urgency"`
	Faults           map[string]int64 `json:"faults"`
	CacheHits        int64            `json:"cache_hits"`
	Transfers        int64            `json:"session_transfers"`
	EmergencyAlerts  map[string]int64 `json:"emergency_alerts"`
	LatencyP95Ms     float64          `json:"latency_p95_ms"`
}

// TakeSnapshot reads the assistant families from gatherer (nil uses the default gatherer).
func TakeSnapshot(gatherer prometheus.Gatherer) Snapshot {
	snap := Snapshot{
		QueriesByType:    map[string]int64{},
		QueriesByUrgency: map[string]int64{},
		Faults:           map[string]int64{},
		EmergencyAlerts:  map[string]int64{},
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return snap
	}

	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case "clinic_assistant_queries_total":
			for _, metric := range mf.Metric {
				v := int64(metric.GetCounter().GetValue())
				snap.QueriesByType[labelValue(metric, "type")] += v
				snap.QueriesByUrgency[labelValue(metric, "urgency")] += v
			}
		case "clinic_assistant_faults_total":
			for _, metric := range mf.Metric {
				snap.Faults[labelValue(metric, "stage")] += int64(metric.GetCounter().GetValue())
			}
		case "clinic_assistant_emergency_alerts_total":
			for _, metric := range mf.Metric {
				snap.EmergencyAlerts[labelValue(metric, "status")] += int64(metric.GetCounter().GetValue())
			}
		case "clinic_assistant_cache_hits_total":
			snap.CacheHits = sumCounters(mf)
		case "clinic_assistant_session_transfers_total":
			snap.Transfers = sumCounters(mf)
		case "clinic_assistant_answer_latency_seconds":
			snap.LatencyP95Ms = histogramP95(mf) * 1000.0
		}
	}
	return snap
}

func sumCounters(mf *dto.MetricFamily) int64 {
	var total float64
	for _, metric := range mf.Metric {
		total += metric.GetCounter().GetValue()
	}
	return int64(total)
}

// histogramP95 merges every series of the family and interpolates the 95th percentile.
func histogramP95(mf *dto.MetricFamily) float64 {
	cumulativeByUpper := map[float64]uint64{}
	var sampleCount uint64
	for _, metric := range mf.Metric {
		h := metric.GetHistogram()
		if h == nil {
			continue
		}
		sampleCount += h.GetSampleCount()
		for _, b := range h.Bucket {
			cumulativeByUpper[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if sampleCount == 0 {
		return 0
	}

	uppers := make([]float64, 0, len(cumulativeByUpper))
	for upper := range cumulativeByUpper {
		uppers = append(uppers, upper)
	}
	sort.Float64s(uppers)

	rank := 0.95 * float64(sampleCount)
	var prevUpper float64
	var prevCum uint64
	for _, upper := range uppers {
		cum := cumulativeByUpper[upper]
		if float64(cum) >= rank {
			if math.IsInf(upper, 1) {
				return prevUpper
			}
			inBucket := cum - prevCum
			if inBucket == 0 {
				return upper
			}
			return prevUpper + (upper-prevUpper)*(rank-float64(prevCum))/float64(inBucket)
		}
		prevUpper, prevCum = upper, cum
	}
	return prevUpper
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
