// Package patch defines the record exchanged between an image sampler and
// a training/inference input queue: one sampled sub-region of a labeled
// source volume together with its label, weight map and location metadata.
//
// The record assumes all arrays have the same edge length in every spatial
// dimension, i.e. imageShape = [size] * numWindow, with a trailing channel
// dimension holding the configured number of modalities.
package patch

import (
	"errors"
	"fmt"

	"volpatch/pkg/graph"
	"volpatch/pkg/tensor"
)

// ErrNilInfo is returned by IsStoppingSignal when the info array is nil,
// distinguishing a bad call from a genuine "not a stopping signal".
var ErrNilInfo = errors.New("nil info array")

// Source is an image-like object a patch is sliced from. Its data is a
// 4-d array laid out spatial-then-channel (x, y, z, modality); plain 2D
// sources carry a singleton z dimension.
type Source interface {
	Data() *tensor.Dense
}

// Config holds the immutable construction parameters of a patch record.
// LabelShape and WeightMapShape are optional; a nil shape disables the
// corresponding array entirely.
type Config struct {
	// ImageShape is the spatial shape of the sampled image window. All
	// entries must be equal.
	ImageShape []int

	// InfoLength is the number of coordinates in a patch location and
	// determines the spatial rank; see RankFromInfoLength.
	InfoLength int

	// LabelShape is the spatial shape of the label window, or nil when
	// the dataset has no labels. Must have NumWindow uniform entries.
	LabelShape []int

	// WeightMapShape is the spatial shape of the weight-map window, or
	// nil when no weight maps are used.
	WeightMapShape []int

	// Element types declared to the input queue.
	ImageDType     tensor.DType
	LabelDType     tensor.DType
	WeightMapDType tensor.DType

	// Channel counts for the trailing modality dimension.
	NumImageModality int
	NumLabelModality int
	NumWeightMap     int
}

// DefaultConfig returns a Config with the conventional element types
// (float32 image and weight map, int64 label) and one modality per array.
// The caller fills in the shapes and info length.
func DefaultConfig() Config {
	return Config{
		ImageDType:       tensor.Float32,
		LabelDType:       tensor.Int64,
		WeightMapDType:   tensor.Float32,
		NumImageModality: 1,
		NumLabelModality: 1,
		NumWeightMap:     1,
	}
}

// Patch is one sampled element of an image dataset and the element type of
// the downstream input buffer. Shape metadata is derived once at
// construction; the payload arrays are assigned later, each through a
// setter that validates the array against its derived shape and type.
type Patch struct {
	cfg  Config
	rank Rank

	// Uniform edge lengths, derived from the configured shapes.
	// labelSize and weightMapSize are meaningful only when the
	// corresponding shape is configured.
	imageSize     int
	labelSize     int
	weightMapSize int

	// Payload, nil until assigned.
	image     *tensor.Dense
	info      *tensor.Dense
	label     *tensor.Dense
	weightMap *tensor.Dense
}

// uniformEdge returns the single edge length shared by all entries of a
// spatial shape, or an error when the shape is empty or non-uniform.
func uniformEdge(name string, shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("%s shape is empty", name)
	}
	size := shape[0]
	for _, dim := range shape[1:] {
		if dim != size {
			return 0, fmt.Errorf("%s shape %v is not uniform across spatial dims", name, shape)
		}
	}
	return size, nil
}

// New validates the configuration and derives the patch geometry. It fails
// when any edge-length collection is non-uniform, when the label or
// weight-map dimensionality does not match the spatial rank, or when the
// info length does not describe a supported rank.
func New(cfg Config) (*Patch, error) {
	rank, err := RankFromInfoLength(cfg.InfoLength)
	if err != nil {
		return nil, err
	}

	imageSize, err := uniformEdge("image", cfg.ImageShape)
	if err != nil {
		return nil, err
	}

	p := &Patch{
		cfg:       cfg,
		rank:      rank,
		imageSize: imageSize,
	}

	if cfg.LabelShape != nil {
		if len(cfg.LabelShape) != rank.NumWindow() {
			return nil, fmt.Errorf("label shape %v has %d dims, want %d for rank %s",
				cfg.LabelShape, len(cfg.LabelShape), rank.NumWindow(), rank)
		}
		if p.labelSize, err = uniformEdge("label", cfg.LabelShape); err != nil {
			return nil, err
		}
	}
	if cfg.WeightMapShape != nil {
		if len(cfg.WeightMapShape) != rank.NumWindow() {
			return nil, fmt.Errorf("weight map shape %v has %d dims, want %d for rank %s",
				cfg.WeightMapShape, len(cfg.WeightMapShape), rank.NumWindow(), rank)
		}
		if p.weightMapSize, err = uniformEdge("weight map", cfg.WeightMapShape); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SpatialRank returns the sampling rank selected at construction.
func (p *Patch) SpatialRank() Rank {
	return p.rank
}

// HasLabels reports whether the record carries a label array: a label
// shape was configured and its modality count is positive.
func (p *Patch) HasLabels() bool {
	return p.cfg.LabelShape != nil && p.cfg.NumLabelModality > 0
}

// HasWeightMaps reports whether the record carries a weight-map array.
func (p *Patch) HasWeightMaps() bool {
	return p.cfg.WeightMapShape != nil && p.cfg.NumWeightMap > 0
}

// ImageSize is the uniform spatial edge length of the image window.
func (p *Patch) ImageSize() int {
	return p.imageSize
}

// LabelSize is the uniform spatial edge length of the label window, zero
// when labels are not configured.
func (p *Patch) LabelSize() int {
	if !p.HasLabels() {
		return 0
	}
	return p.labelSize
}

// WeightMapSize is the uniform spatial edge length of the weight-map
// window, zero when weight maps are not configured.
func (p *Patch) WeightMapSize() int {
	if !p.HasWeightMaps() {
		return 0
	}
	return p.weightMapSize
}

// fullShape builds the compact array shape: the edge length repeated over
// the window dimensions plus the trailing modality dimension.
func (p *Patch) fullShape(size, modalities int) tensor.Shape {
	shape := make(tensor.Shape, 0, p.rank.NumWindow()+1)
	for i := 0; i < p.rank.NumWindow(); i++ {
		shape = append(shape, size)
	}
	return append(shape, modalities)
}

// informativeShape is fullShape with a singleton z dimension restored for
// the planar modes, the layout consumers use when writing patches back
// into a volume.
func (p *Patch) informativeShape(size, modalities int) tensor.Shape {
	shape := make(tensor.Shape, 0, p.rank.NumWindow()+2)
	for i := 0; i < p.rank.NumWindow(); i++ {
		shape = append(shape, size)
	}
	if p.rank != Rank3D {
		shape = append(shape, 1)
	}
	return append(shape, modalities)
}

// ImageShape is the full shape of the image array: the spatial window
// plus the modality dimension.
func (p *Patch) ImageShape() tensor.Shape {
	return p.fullShape(p.imageSize, p.cfg.NumImageModality)
}

// LabelShape is the full shape of the label array, nil when labels are
// not configured.
func (p *Patch) LabelShape() tensor.Shape {
	if !p.HasLabels() {
		return nil
	}
	return p.fullShape(p.labelSize, p.cfg.NumLabelModality)
}

// WeightMapShape is the full shape of the weight-map array, nil when
// weight maps are not configured.
func (p *Patch) WeightMapShape() tensor.Shape {
	if !p.HasWeightMaps() {
		return nil
	}
	return p.fullShape(p.weightMapSize, p.cfg.NumWeightMap)
}

// InformativeImageShape is the image layout with the singleton z
// dimension restored for the planar modes.
func (p *Patch) InformativeImageShape() tensor.Shape {
	return p.informativeShape(p.imageSize, p.cfg.NumImageModality)
}

// InformativeLabelShape is the label layout with the singleton z
// dimension restored, nil when labels are not configured.
func (p *Patch) InformativeLabelShape() tensor.Shape {
	if !p.HasLabels() {
		return nil
	}
	return p.informativeShape(p.labelSize, p.cfg.NumLabelModality)
}

// InformativeWeightMapShape is the weight-map layout with the singleton z
// dimension restored, nil when weight maps are not configured.
func (p *Patch) InformativeWeightMapShape() tensor.Shape {
	if !p.HasWeightMaps() {
		return nil
	}
	return p.informativeShape(p.weightMapSize, p.cfg.NumWeightMap)
}

// InfoShape is the shape of the location array: the subject id followed by
// a start and end coordinate per spatial dimension. It is used to write
// the sampled patch back into the original volume.
func (p *Patch) InfoShape() tensor.Shape {
	return tensor.Shape{1 + p.rank.InfoLength()}
}

// CreatePlaceholders builds one typed input declaration per array the
// record carries, in the fixed order {images, info, labels, weightmaps}.
// Image and info are always present; labels and weight maps only when
// configured. The info declaration is pinned to int64.
func (p *Patch) CreatePlaceholders() []graph.Placeholder {
	placeholders := []graph.Placeholder{
		graph.NewPlaceholder("images", p.cfg.ImageDType, p.ImageShape()),
		graph.NewPlaceholder("info", tensor.Int64, p.InfoShape()),
	}
	if p.HasLabels() {
		placeholders = append(placeholders,
			graph.NewPlaceholder("labels", p.cfg.LabelDType, p.LabelShape()))
	}
	if p.HasWeightMaps() {
		placeholders = append(placeholders,
			graph.NewPlaceholder("weightmaps", p.cfg.WeightMapDType, p.WeightMapShape()))
	}
	return placeholders
}

// checkArray validates an incoming payload array against its derived
// shape and declared type.
func checkArray(name string, v *tensor.Dense, dtype tensor.DType, shape tensor.Shape) error {
	if v == nil {
		return fmt.Errorf("%s array is nil", name)
	}
	if !v.Shape().Equal(shape) {
		return fmt.Errorf("%s shape %v does not match expected %v", name, v.Shape(), shape)
	}
	if v.DType() != dtype {
		return fmt.Errorf("%s element type %s does not match declared %s", name, v.DType(), dtype)
	}
	return nil
}

// Image returns the image array, or an error if it was never assigned.
func (p *Patch) Image() (*tensor.Dense, error) {
	if p.image == nil {
		return nil, fmt.Errorf("image has not been set")
	}
	return p.image, nil
}

// Info returns the location array, or an error if it was never assigned.
func (p *Patch) Info() (*tensor.Dense, error) {
	if p.info == nil {
		return nil, fmt.Errorf("info has not been set")
	}
	return p.info, nil
}

// Label returns the label array, or an error if it was never assigned.
func (p *Patch) Label() (*tensor.Dense, error) {
	if p.label == nil {
		return nil, fmt.Errorf("label has not been set")
	}
	return p.label, nil
}

// WeightMap returns the weight-map array, or an error if it was never
// assigned.
func (p *Patch) WeightMap() (*tensor.Dense, error) {
	if p.weightMap == nil {
		return nil, fmt.Errorf("weight map has not been set")
	}
	return p.weightMap, nil
}

// SetImage assigns the image array after validating shape and type.
func (p *Patch) SetImage(v *tensor.Dense) error {
	if err := checkArray("image", v, p.cfg.ImageDType, p.ImageShape()); err != nil {
		return err
	}
	p.image = v
	return nil
}

// SetInfo assigns the location array after validating shape and type.
func (p *Patch) SetInfo(v *tensor.Dense) error {
	if err := checkArray("info", v, tensor.Int64, p.InfoShape()); err != nil {
		return err
	}
	p.info = v
	return nil
}

// SetLabel assigns the label array. Fails when labels are not configured
// or the array does not match the derived shape and type.
func (p *Patch) SetLabel(v *tensor.Dense) error {
	if !p.HasLabels() {
		return fmt.Errorf("patch has no label array configured")
	}
	if err := checkArray("label", v, p.cfg.LabelDType, p.LabelShape()); err != nil {
		return err
	}
	p.label = v
	return nil
}

// SetWeightMap assigns the weight-map array. Fails when weight maps are
// not configured or the array does not match the derived shape and type.
func (p *Patch) SetWeightMap(v *tensor.Dense) error {
	if !p.HasWeightMaps() {
		return fmt.Errorf("patch has no weight map array configured")
	}
	if err := checkArray("weight map", v, p.cfg.WeightMapDType, p.WeightMapShape()); err != nil {
		return err
	}
	p.weightMap = v
	return nil
}

// SetData populates the record from a labeled source: it records the
// subject id and spatial bounds in the info array and slices the image,
// label and weight-map windows out of the given sources.
//
// spatialLoc is interpreted per rank:
//
//	3D:   (x0, y0, z0, x1, y1, z1) — a full sub-volume
//	2D:   (x0, y0, x1, y1)         — an in-plane window at z=0
//	2.5D: (x0, y0, z0, x1, y1)     — an in-plane window at plane z0
//
// Label and weight-map windows may be smaller than the image window; they
// are centered by shifting the start uniformly by the (non-negative) size
// difference. seg and wmap may be nil, in which case the corresponding
// arrays are left unset even when configured.
func (p *Patch) SetData(subjectID int64, spatialLoc []int, img, seg, wmap Source) error {
	if img == nil {
		return fmt.Errorf("image source is nil")
	}
	if len(spatialLoc) != p.rank.InfoLength() {
		return fmt.Errorf("spatial location has %d coordinates, want %d for rank %s",
			len(spatialLoc), p.rank.InfoLength(), p.rank)
	}

	coords := make([]int64, 0, 1+len(spatialLoc))
	coords = append(coords, subjectID)
	for _, c := range spatialLoc {
		coords = append(coords, int64(c))
	}
	info, err := tensor.FromInt64s(p.InfoShape(), coords)
	if err != nil {
		return err
	}
	if err := p.SetInfo(info); err != nil {
		return err
	}

	switch p.rank {
	case Rank3D:
		return p.sliceRank3(spatialLoc, img, seg, wmap)
	case Rank2D:
		return p.sliceRank2(spatialLoc, img, seg, wmap)
	default:
		return p.sliceRank2Half(spatialLoc, img, seg, wmap)
	}
}

// sourceData validates that a source exposes a 4-d spatial-then-channel
// array and returns it.
func sourceData(name string, src Source) (*tensor.Dense, error) {
	data := src.Data()
	if data == nil {
		return nil, fmt.Errorf("%s source has no data", name)
	}
	if len(data.Shape()) != 4 {
		return nil, fmt.Errorf("%s source is %d-d, want 4-d (spatial + channel)",
			name, len(data.Shape()))
	}
	return data, nil
}

// targetOffset computes the uniform start shift that centers a smaller
// target window inside the image window.
func (p *Patch) targetOffset(name string, targetSize int) (int, error) {
	diff := p.imageSize - targetSize
	if diff < 0 {
		return 0, fmt.Errorf("%s size %d exceeds image size %d", name, targetSize, p.imageSize)
	}
	return diff, nil
}

func (p *Patch) sliceRank3(loc []int, img, seg, wmap Source) error {
	x0, y0, z0, x1, y1, z1 := loc[0], loc[1], loc[2], loc[3], loc[4], loc[5]

	src, err := sourceData("image", img)
	if err != nil {
		return err
	}
	dims := src.Shape()
	if x1 > dims[0] || y1 > dims[1] || z1 > dims[2] {
		return fmt.Errorf("patch bounds (%d, %d, %d) exceed source extent %v", x1, y1, z1, dims)
	}
	window, err := src.Region([]int{x0, y0, z0, 0}, []int{x1, y1, z1, dims[3]})
	if err != nil {
		return fmt.Errorf("slicing image: %w", err)
	}
	if err := p.SetImage(window); err != nil {
		return err
	}

	// Smaller label/weight windows are cube-centered at the shifted start.
	slice := func(name string, from Source, size int, assign func(*tensor.Dense) error) error {
		data, err := sourceData(name, from)
		if err != nil {
			return err
		}
		diff, err := p.targetOffset(name, size)
		if err != nil {
			return err
		}
		xd, yd, zd := x0+diff, y0+diff, z0+diff
		window, err := data.Region(
			[]int{xd, yd, zd, 0},
			[]int{xd + size, yd + size, zd + size, data.Shape()[3]})
		if err != nil {
			return fmt.Errorf("slicing %s: %w", name, err)
		}
		return assign(window)
	}

	if p.HasLabels() && seg != nil {
		if err := slice("label", seg, p.labelSize, p.SetLabel); err != nil {
			return err
		}
	}
	if p.HasWeightMaps() && wmap != nil {
		if err := slice("weight map", wmap, p.weightMapSize, p.SetWeightMap); err != nil {
			return err
		}
	}
	return nil
}

// planeWindow extracts [x0:x1, y0:y1, z, :] from a 4-d source and drops
// the singleton plane dimension.
func planeWindow(data *tensor.Dense, x0, y0, x1, y1, z int) (*tensor.Dense, error) {
	region, err := data.Region(
		[]int{x0, y0, z, 0},
		[]int{x1, y1, z + 1, data.Shape()[3]})
	if err != nil {
		return nil, err
	}
	return region.Squeeze(2)
}

// slicePlanar handles the shared in-plane slicing of the 2D and 2.5D
// modes; z is the source plane both the image and any label/weight-map
// windows are taken from.
func (p *Patch) slicePlanar(x0, y0, x1, y1, z int, img, seg, wmap Source) error {
	src, err := sourceData("image", img)
	if err != nil {
		return err
	}
	dims := src.Shape()
	if x1 > dims[0] || y1 > dims[1] {
		return fmt.Errorf("patch bounds (%d, %d) exceed source extent %v", x1, y1, dims)
	}
	if z >= dims[2] {
		return fmt.Errorf("plane %d out of range for source extent %v", z, dims)
	}
	window, err := planeWindow(src, x0, y0, x1, y1, z)
	if err != nil {
		return fmt.Errorf("slicing image: %w", err)
	}
	if err := p.SetImage(window); err != nil {
		return err
	}

	slice := func(name string, from Source, size int, assign func(*tensor.Dense) error) error {
		data, err := sourceData(name, from)
		if err != nil {
			return err
		}
		diff, err := p.targetOffset(name, size)
		if err != nil {
			return err
		}
		xd, yd := x0+diff, y0+diff
		window, err := planeWindow(data, xd, yd, xd+size, yd+size, z)
		if err != nil {
			return fmt.Errorf("slicing %s: %w", name, err)
		}
		return assign(window)
	}

	if p.HasLabels() && seg != nil {
		if err := slice("label", seg, p.labelSize, p.SetLabel); err != nil {
			return err
		}
	}
	if p.HasWeightMaps() && wmap != nil {
		if err := slice("weight map", wmap, p.weightMapSize, p.SetWeightMap); err != nil {
			return err
		}
	}
	return nil
}

func (p *Patch) sliceRank2(loc []int, img, seg, wmap Source) error {
	x0, y0, x1, y1 := loc[0], loc[1], loc[2], loc[3]
	return p.slicePlanar(x0, y0, x1, y1, 0, img, seg, wmap)
}

func (p *Patch) sliceRank2Half(loc []int, img, seg, wmap Source) error {
	x0, y0, z0, x1, y1 := loc[0], loc[1], loc[2], loc[3], loc[4]
	return p.slicePlanar(x0, y0, x1, y1, z0, img, seg, wmap)
}

// AsFeed pairs the given placeholder tuple with the populated arrays, in
// the fixed order {image, info, label, weight map}. It fails when any
// expected array was never assigned, or when the placeholder count does
// not match the number of arrays the record carries.
func (p *Patch) AsFeed(placeholders []graph.Placeholder) (*graph.Feed, error) {
	type entry struct {
		name string
		data *tensor.Dense
	}
	entries := []entry{
		{"image", p.image},
		{"info", p.info},
	}
	if p.HasLabels() {
		entries = append(entries, entry{"label", p.label})
	}
	if p.HasWeightMaps() {
		entries = append(entries, entry{"weight map", p.weightMap})
	}

	values := make([]*tensor.Dense, 0, len(entries))
	for _, e := range entries {
		if e.data == nil {
			return nil, fmt.Errorf("%s has not been set", e.name)
		}
		values = append(values, e.data)
	}
	if len(placeholders) != len(values) {
		return nil, fmt.Errorf("%d placeholders for %d arrays", len(placeholders), len(values))
	}
	return &graph.Feed{Placeholders: placeholders, Values: values}, nil
}

// StoppingSignal returns the sentinel info array: the info shape filled
// with -1. A consumer seeing it shuts down its end of the pipeline.
func (p *Patch) StoppingSignal() *tensor.Dense {
	sentinel, _ := tensor.New(tensor.Int64, p.InfoShape())
	sentinel.Fill(-1)
	return sentinel
}

// FillWithStoppingInfo replaces the info array with the stopping sentinel.
func (p *Patch) FillWithStoppingInfo() {
	p.info = p.StoppingSignal()
}

// IsStoppingSignal reports whether info is the stopping sentinel:
// sentinel-shaped and element-wise -1. A nil info is a caller error and
// returns ErrNilInfo rather than false.
func (p *Patch) IsStoppingSignal(info *tensor.Dense) (bool, error) {
	if info == nil {
		return false, ErrNilInfo
	}
	return info.Shape().Equal(p.InfoShape()) && info.AllEqual(-1), nil
}
