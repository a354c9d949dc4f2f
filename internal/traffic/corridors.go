package traffic

import "github.com/trafficpulse/trafficpulse/pkg/geo"

// DefaultCorridors are the Istanbul arterial corridors sampled for the index.
func DefaultCorridors() []Corridor {
	return []Corridor{
		{Name: "E5 Batı→Merkez (Beylikdüzü→Bakırköy)", From: geo.Point{Lat: 41.0018, Lng: 28.6401}, To: geo.Point{Lat: 40.9799, Lng: 28.8721}},
		{Name: "E5 Doğu→Merkez (Kartal→Kadıköy)", From: geo.Point{Lat: 40.9076, Lng: 29.2278}, To: geo.Point{Lat: 40.9871, Lng: 29.0356}},
		{Name: "TEM Batı→Merkez (Hadımköy→Maslak)", From: geo.Point{Lat: 41.1361, Lng: 28.5870}, To: geo.Point{Lat: 41.1115, Lng: 29.0203}},
		{Name: "TEM Doğu→Merkez (Şile→Ümraniye)", From: geo.Point{Lat: 41.1717, Lng: 29.3535}, To: geo.Point{Lat: 41.0332, Lng: 29.0985}},
		{Name: "1.Köprü Asya→Avrupa (Kuzguncuk→Beşiktaş)", From: geo.Point{Lat: 41.0408, Lng: 29.0320}, To: geo.Point{Lat: 41.0423, Lng: 29.0050}},
		{Name: "2.Köprü Asya→Avrupa (Kavacık→Levent)", From: geo.Point{Lat: 41.0917, Lng: 29.0745}, To: geo.Point{Lat: 41.0854, Lng: 29.0218}},
		{Name: "Avrasya Tüneli (Acıbadem→Yenikapı)", From: geo.Point{Lat: 41.0087, Lng: 29.0396}, To: geo.Point{Lat: 41.0044, Lng: 28.9557}},
		{Name: "Havalimanı→Taksim", From: geo.Point{Lat: 41.2620, Lng: 28.7424}, To: geo.Point{Lat: 41.0369, Lng: 28.9850}},
	}
}

// ValidateCorridors checks that names are unique and non-empty and that every endpoint is a valid point.
func ValidateCorridors(corridors []Corridor) error {
	seen := make(map[string]struct{}, len(corridors))
	for i, c := range corridors {
		if c.Name == "" {
			return &CorridorError{Index: i, Reason: "name is required"}
		}
		if _, dup := seen[c.Name]; dup {
			return &CorridorError{Index: i, Name: c.Name, Reason: "duplicate name"}
		}
		seen[c.Name] = struct{}{}

		if err := c.From.Validate(); err != nil {
			return &CorridorError{Index: i, Name: c.Name, Reason: "invalid from: " + err.Error()}
		}
		if err := c.To.Validate(); err != nil {
			return &CorridorError{Index: i, Name: c.Name, Reason: "invalid to: " + err.Error()}
		}
	}
	return nil
}
