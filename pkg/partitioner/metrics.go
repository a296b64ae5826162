package partitioner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zhangwei5095/metasfresh/internal/build"
)

var (
	closureSizeHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: build.ProjectName,
		Name:      "closure_records",
		Help:      "The number of records in a computed closure.",
		Buckets:   []float64{0, 1, 10, 100, 1000, 10000, 100000},
	})

	repairIterationsHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: build.ProjectName,
		Name:      "repair_iterations",
		Help:      "The number of closure computations needed to create a partition.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 50, 100},
	}, []string{"outcome"})

	augmentationCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "config_augmentations_total",
		Help:      "The number of references added to a configuration because of an integrity violation.",
	}, []string{"referencing_table"})

	storedPartitionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "stored_partitions_total",
		Help:      "The number of partitions handed to the partition writer, by result.",
	}, []string{"result"})
)
