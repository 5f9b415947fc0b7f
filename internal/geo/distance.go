package geo

import (
	"math"

	"opspulse/internal/models"
)

const (
	// EarthRadiusKm радиус Земли для расчета расстояний по дуге
	EarthRadiusKm = 6371.0
	// MinBoundsPadding минимальный отступ вокруг маркеров в градусах
	MinBoundsPadding = 0.01
	// BoundsPaddingRatio доля размаха маркеров, добавляемая с каждой стороны
	BoundsPaddingRatio = 0.1
)

// DefaultCenter центр карты по умолчанию (Аддис-Абеба)
var DefaultCenter = models.Coordinate{Latitude: 8.9806, Longitude: 38.7578}

// DefaultSpan половина размера области по умолчанию в градусах
const DefaultSpan = 0.05

// HaversineKm вычисляет расстояние между точками по дуге в километрах
func HaversineKm(a, b models.Coordinate) float64 {
	const degToRad = math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * degToRad
	dLng := (b.Longitude - a.Longitude) * degToRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Latitude*degToRad)*math.Cos(b.Latitude*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// EuclideanDegrees возвращает плоское расстояние между точками в градусах
func EuclideanDegrees(a, b models.Coordinate) float64 {
	return math.Hypot(b.Latitude-a.Latitude, b.Longitude-a.Longitude)
}

// Interpolate возвращает segments+1 равномерных точек от a до b включительно
func Interpolate(a, b models.Coordinate, segments int) []models.Coordinate {
	if segments < 1 {
		segments = 1
	}
	points := make([]models.Coordinate, 0, segments+1)
	for i := 0; i <= segments; i++ {
		ratio := float64(i) / float64(segments)
		points = append(points, models.Coordinate{
			Latitude:  a.Latitude + (b.Latitude-a.Latitude)*ratio,
			Longitude: a.Longitude + (b.Longitude-a.Longitude)*ratio,
		})
	}
	return points
}

// DefaultBounds возвращает область, которая показывается на пустой карте
func DefaultBounds() models.BoundingBox {
	return models.BoundingBox{
		South: DefaultCenter.Latitude - DefaultSpan,
		West:  DefaultCenter.Longitude - DefaultSpan,
		North: DefaultCenter.Latitude + DefaultSpan,
		East:  DefaultCenter.Longitude + DefaultSpan,
	}
}

// Bounds возвращает минимальную область с отступом, покрывающую все точки, или область по умолчанию
func Bounds(points []models.Coordinate) models.BoundingBox {
	if len(points) == 0 {
		return DefaultBounds()
	}
	box := models.BoundingBox{
		South: points[0].Latitude, North: points[0].Latitude,
		West: points[0].Longitude, East: points[0].Longitude,
	}
	for _, p := range points[1:] {
		box.South = math.Min(box.South, p.Latitude)
		box.North = math.Max(box.North, p.Latitude)
		box.West = math.Min(box.West, p.Longitude)
		box.East = math.Max(box.East, p.Longitude)
	}
	padLat := math.Max((box.North-box.South)*BoundsPaddingRatio, MinBoundsPadding)
	padLng := math.Max((box.East-box.West)*BoundsPaddingRatio, MinBoundsPadding)
	box.South -= padLat
	box.North += padLat
	box.West -= padLng
	box.East += padLng
	return box
}
