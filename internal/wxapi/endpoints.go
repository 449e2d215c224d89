package wxapi

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lox/firecast/internal/hfi"
	"github.com/lox/firecast/internal/models"
)

const dateLayout = "2006-01-02"

// FireCentres lists fire centres with their planning areas and stations.
func (c *Client) FireCentres(ctx context.Context) ([]models.FireCentre, error) {
	var out struct {
		FireCentres []models.FireCentre `json:"fire_centres"`
	}
	err := c.getJSON(ctx, "hfi-calc/fire-centres", "/hfi-calc/fire-centres", &out, func() int { return len(out.FireCentres) })
	if err != nil {
		return nil, err
	}
	return out.FireCentres, nil
}

func (c *Client) FuelTypes(ctx context.Context) ([]models.FuelType, error) {
	var out struct {
		FuelTypes []models.FuelType `json:"fuel_types"`
	}
	err := c.getJSON(ctx, "hfi-calc/fuel_types", "/hfi-calc/fuel_types", &out, func() int { return len(out.FuelTypes) })
	if err != nil {
		return nil, err
	}
	return out.FuelTypes, nil
}

type geoJSONStations struct {
	Features []struct {
		Properties struct {
			Code      int              `json:"code"`
			Name      string           `json:"name"`
			Elevation models.NullFloat `json:"elevation"`
			ZoneCode  string           `json:"zone_code"`
		} `json:"properties"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Stations lists weather stations from the GeoJSON station feed.
func (c *Client) Stations(ctx context.Context) ([]models.Station, error) {
	var out geoJSONStations
	err := c.getJSON(ctx, "stations", "/stations/?source=unspecified", &out, func() int { return len(out.Features) })
	if err != nil {
		return nil, err
	}

	stations := make([]models.Station, 0, len(out.Features))
	for _, f := range out.Features {
		st := models.Station{
			Code:      f.Properties.Code,
			Name:      f.Properties.Name,
			Elevation: f.Properties.Elevation,
			FireZone:  f.Properties.ZoneCode,
		}
		if len(f.Geometry.Coordinates) >= 2 {
			st.Longitude = f.Geometry.Coordinates[0]
			st.Latitude = f.Geometry.Coordinates[1]
		}
		stations = append(stations, st)
	}
	return stations, nil
}

// Dailies fetches computed fire behaviour for stations between start and end.
func (c *Client) Dailies(ctx context.Context, codes []int, start, end time.Time) ([]models.StationDaily, error) {
	q := url.Values{}
	q.Set("station_codes", joinInts(codes))
	q.Set("start_time_stamp", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("end_time_stamp", strconv.FormatInt(end.UnixMilli(), 10))

	var out struct {
		Dailies []models.StationDaily `json:"dailies"`
	}
	err := c.getJSON(ctx, "hfi-calc/daily", "/hfi-calc/daily?"+q.Encode(), &out, func() int { return len(out.Dailies) })
	if err != nil {
		return nil, err
	}
	return out.Dailies, nil
}

func resultCount(r *hfi.Result) func() int {
	return func() int { return len(r.PlanningAreaHFIResults) }
}

func centrePath(centreID int, start, end string) string {
	return fmt.Sprintf("/hfi-calc/fire_centre/%d/%s/%s", centreID, start, end)
}

// LoadHFIResult loads the saved or default result for a fire centre.
func (c *Client) LoadHFIResult(ctx context.Context, centreID int) (*hfi.Result, error) {
	var out hfi.Result
	path := fmt.Sprintf("/hfi-calc/fire_centre/%d", centreID)
	if err := c.getJSON(ctx, "hfi-calc/fire_centre", path, &out, resultCount(&out)); err != nil {
		return nil, err
	}
	return &out, nil
}

// HFIResult fetches the result for a fire centre over a prep period.
func (c *Client) HFIResult(ctx context.Context, centreID int, start, end string) (*hfi.Result, error) {
	var out hfi.Result
	if err := c.getJSON(ctx, "hfi-calc/fire_centre/range", centrePath(centreID, start, end), &out, resultCount(&out)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetStationSelected(ctx context.Context, centreID int, start, end string, areaID, code int, selected bool) (*hfi.Result, error) {
	path := fmt.Sprintf("%s/planning_area/%d/station/%d/selected/%t", centrePath(centreID, start, end), areaID, code, selected)
	var out hfi.Result
	if err := c.postJSON(ctx, "hfi-calc/station/selected", path, nil, &out, resultCount(&out)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetFuelType(ctx context.Context, centreID int, start, end string, areaID, code, fuelTypeID int) (*hfi.Result, error) {
	path := fmt.Sprintf("%s/planning_area/%d/station/%d/fuel_type/%d", centrePath(centreID, start, end), areaID, code, fuelTypeID)
	var out hfi.Result
	if err := c.postJSON(ctx, "hfi-calc/station/fuel_type", path, nil, &out, resultCount(&out)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetFireStarts(ctx context.Context, centreID int, start, end string, areaID int, prepDay string, rangeID int) (*hfi.Result, error) {
	path := fmt.Sprintf("%s/planning_area/%d/fire_starts/%s/fire_start_range/%d", centrePath(centreID, start, end), areaID, prepDay, rangeID)
	var out hfi.Result
	if err := c.postJSON(ctx, "hfi-calc/fire_starts", path, nil, &out, resultCount(&out)); err != nil {
		return nil, err
	}
	return &out, nil
}

// WeatherIndeterminates fetches actuals, forecasts and model predictions for
// stations over the inclusive day range.
func (c *Client) WeatherIndeterminates(ctx context.Context, from, to time.Time, codes []int) (models.WeatherIndeterminates, error) {
	path := fmt.Sprintf("/morecast-v2/weather-indeterminates/%s/%s", from.Format(dateLayout), to.Format(dateLayout))
	in := struct {
		Stations []int `json:"stations"`
	}{Stations: codes}
	if in.Stations == nil {
		in.Stations = []int{}
	}

	var out models.WeatherIndeterminates
	count := func() int { return len(out.Actuals) + len(out.Forecasts) + len(out.Predictions) }
	if err := c.postJSON(ctx, "morecast-v2/weather-indeterminates", path, in, &out, count); err != nil {
		return models.WeatherIndeterminates{}, err
	}
	return out, nil
}

// SimulateIndices recalculates fire weather indices for forecast records.
func (c *Client) SimulateIndices(ctx context.Context, records []models.WeatherIndeterminate) ([]models.WeatherIndeterminate, error) {
	in := struct {
		Records []models.WeatherIndeterminate `json:"simulate_records"`
	}{Records: records}

	var out struct {
		Simulated []models.WeatherIndeterminate `json:"simulated_forecasts"`
	}
	if err := c.postJSON(ctx, "morecast-v2/simulate-indices", "/morecast-v2/simulate-indices/", in, &out, func() int { return len(out.Simulated) }); err != nil {
		return nil, err
	}
	return out.Simulated, nil
}

// PDF is a rendered HFI report.
type PDF struct {
	Filename string
	Data     []byte
}

// PDF fetches the rendered report for a fire centre's prep period.
func (c *Client) PDF(ctx context.Context, centreID int, start, end string) (*PDF, error) {
	var pdf PDF
	err := c.call(ctx, http.MethodGet, "hfi-calc/pdf", centrePath(centreID, start, end)+"/pdf", nil, func(resp response) (int, error) {
		pdf.Data = resp.body
		pdf.Filename = filenameFromDisposition(resp.header.Get("Content-Disposition"))
		if pdf.Filename == "" {
			pdf.Filename = fmt.Sprintf("hfi-%d-%s-%s.pdf", centreID, start, end)
		}
		return 1, nil
	})
	if err != nil {
		return nil, err
	}
	return &pdf, nil
}

// filenameFromDisposition extracts the filename from a Content-Disposition
// header, accepting the unquoted "attachment; filename=x.pdf" form the API sends.
func filenameFromDisposition(cd string) string {
	if cd == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	if _, after, ok := strings.Cut(cd, "="); ok {
		return strings.Trim(strings.TrimSpace(after), `"`)
	}
	return ""
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
