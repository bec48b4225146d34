package transform

import (
	"context"
	"image/color"
	"math"
	"runtime"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/camgeom/logging"
	"go.viam.com/camgeom/pointcloud"
	"go.viam.com/camgeom/utils"
)

// CorrespondingPoints are the pixels at which the left and right cameras see the same world point.
type CorrespondingPoints struct {
	Left  r2.Point
	Right r2.Point
	// Color is attached to the triangulated point when set.
	Color *color.NRGBA
}

// TriangulationOptions controls batch triangulation. Zero thresholds disable the matching check.
type TriangulationOptions struct {
	Rectified     bool
	UseDistortion bool
	// MaxEpipolarDistance is the largest accepted distance in pixels of the right point from the
	// epipolar line of the left point.
	MaxEpipolarDistance float64
	// MaxRayGap is the largest accepted length of the segment joining the two rays.
	MaxRayGap float64
}

// TriangulatePointCloud triangulates every pair and returns a cloud in world coordinates. Each
// point carries the index of its pair as its value. Pairs that fail a check are left out of the
// cloud and reported in the returned error; the cloud is valid either way. Pairs are solved
// concurrently but the cloud is filled in pair order.
func (s *StereoCalibration) TriangulatePointCloud(
	ctx context.Context,
	pairs []CorrespondingPoints,
	opts TriangulationOptions,
	logger logging.Logger,
) (pointcloud.PointCloud, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]triangulatedPair, len(pairs))
	workers, groupCtx := errgroup.WithContext(ctx)
	workers.SetLimit(runtime.GOMAXPROCS(0))
	for _, chunk := range lo.Chunk(lo.Range(len(pairs)), triangulationChunkSize) {
		workers.Go(func() error {
			for _, i := range chunk {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				results[i] = s.triangulatePair(i, pairs[i], opts)
			}
			return nil
		})
	}
	if err := workers.Wait(); err != nil {
		return nil, err
	}

	pc := pointcloud.NewWithPrealloc(len(pairs))
	var errs error
	gaps := make([]float64, 0, len(pairs))
	for i, res := range results {
		err := res.err
		if err == nil {
			d := pointcloud.NewValueData(i)
			if pairs[i].Color != nil {
				d.SetColor(*pairs[i].Color)
			}
			err = errors.Wrapf(pc.Set(res.point, d), "pair %d", i)
		}
		if err != nil {
			logger.CDebugw(ctx, "rejected correspondence", "index", i, "left", pairs[i].Left, "right", pairs[i].Right, "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		gaps = append(gaps, res.gap)
	}

	fields := []interface{}{
		"pairs", len(pairs),
		"points", pc.Size(),
		"rejected", len(multierr.Errors(errs)),
		"colored", lo.CountBy(pairs, func(p CorrespondingPoints) bool { return p.Color != nil }),
	}
	if median, err := stats.Median(gaps); err == nil {
		maxGap, _ := stats.Max(gaps)
		fields = append(fields, "median_ray_gap", median, "max_ray_gap", maxGap)
	}
	logger.CDebugw(ctx, "triangulated point cloud", fields...)
	return pc, errs
}

// triangulationChunkSize is the number of pairs handled per worker task.
const triangulationChunkSize = 256

type triangulatedPair struct {
	point r3.Vector
	gap   float64
	err   error
}

func (s *StereoCalibration) triangulatePair(i int, pair CorrespondingPoints, opts TriangulationOptions) triangulatedPair {
	if opts.MaxEpipolarDistance > 0 {
		left, right := pair.Left, pair.Right
		if opts.Rectified {
			left = s.rectificationHomographyLeft.Apply(left)
			right = s.rectificationHomographyRight.Apply(right)
		}
		if opts.UseDistortion {
			left = s.left.UndistortImageCoordinates(left)
			right = s.right.UndistortImageCoordinates(right)
		}
		if d := math.Abs(s.CalculateEpipolarLineInRightImageDistance(left, right)); !(d <= opts.MaxEpipolarDistance) {
			return triangulatedPair{err: errors.Errorf("pair %d: epipolar distance %.3f exceeds %.3f", i, d, opts.MaxEpipolarDistance)}
		}
	}

	p, connection := s.Calculate3DPointWithConnection(pair.Left, pair.Right, opts.Rectified, opts.UseDistortion)
	if !utils.IsFinite(p.X, p.Y, p.Z) {
		return triangulatedPair{err: errors.Errorf("pair %d: rays do not meet", i)}
	}
	gap := connection.Length()
	if opts.MaxRayGap > 0 && gap > opts.MaxRayGap {
		return triangulatedPair{err: errors.Errorf("pair %d: ray gap %.3f exceeds %.3f", i, gap, opts.MaxRayGap)}
	}
	if s.left.WorldToCameraCoordinates(p).Z <= 0 || s.right.WorldToCameraCoordinates(p).Z <= 0 {
		return triangulatedPair{err: errors.Errorf("pair %d: point lies behind a camera", i)}
	}
	return triangulatedPair{point: p, gap: gap}
}
