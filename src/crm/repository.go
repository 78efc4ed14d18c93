package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	stdlog "log"
	"strings"
	"time"

	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/models"
	_ "github.com/go-sql-driver/mysql"
)

// ErrDealNotFound is returned when a deal id has no row in the CRM.
var ErrDealNotFound = errors.New("deal not found in CRM")

// The CRM marks sales the business still cares about with these status names,
// and apartments with this sell category. Both are CRM-side constants.
const sellCategoryFlat = "flat"

var activeDealStatuses = []string{"Сделка в работе", "Сделка проведена"}

// DealLookup is the slice of the repository the classification engine needs.
type DealLookup interface {
	LookupActiveDeals(ctx context.Context, houseID int64, propertyIDs []string) (map[string]models.ContractualDeal, error)
}

// Repository reads deal, house and unit data from the CRM MySQL replica.
// Strictly read-only: this service never writes to the CRM.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Connect opens the CRM MySQL connection and verifies it. Fatal on failure:
// without the CRM the service cannot do anything useful.
func Connect(dsn string) *sql.DB {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		stdlog.Fatalf("failed to open CRM database connection: %v", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		stdlog.Fatalf("failed to ping CRM database: %v", err)
	}
	return db
}

// DealDetails is the minimal deal slice needed for act generation.
type DealDetails struct {
	DealID     int64  `json:"deal_id"`
	PropertyID string `json:"property_id"`
	ClientName string `json:"client_name"`
}

// DealFilter narrows the CRM-wide deals listing.
type DealFilter struct {
	ComplexName string
	HouseID     int64
}

// Unit is one apartment's position in the house, used for checkerboard exports.
type Unit struct {
	PropertyID   string
	Section      int
	Floor        int
	ContractArea float64
}

// LookupActiveDeals returns the active-sale deal for each requested flat number
// in the given house. Flats without an active deal are simply absent from the
// result; on duplicate flat numbers the last CRM row wins.
func (r *Repository) LookupActiveDeals(ctx context.Context, houseID int64, propertyIDs []string) (map[string]models.ContractualDeal, error) {
	deals := make(map[string]models.ContractualDeal, len(propertyIDs))
	if len(propertyIDs) == 0 {
		return deals, nil
	}

	args := []interface{}{houseID}
	for _, id := range propertyIDs {
		args = append(args, id)
	}
	for _, s := range activeDealStatuses {
		args = append(args, s)
	}
	args = append(args, sellCategoryFlat)

	query := fmt.Sprintf(`
		SELECT
			d.id, es.geo_flatnum, d.deal_area, d.seller_contacts_id,
			(d.finances_income_reserved > 0) AS has_debt,
			edc.contacts_buy_name, edc.contacts_buy_phones, edc.contacts_buy_type
		FROM estate_deals d
		JOIN estate_sells es ON d.estate_sell_id = es.id
		LEFT JOIN estate_deals_contacts edc ON d.contacts_buy_id = edc.id
		WHERE d.house_id = ?
		  AND es.geo_flatnum IN (%s)
		  AND d.deal_status_name IN (%s)
		  AND es.estate_sell_category = ?`,
		placeholders(len(propertyIDs)), placeholders(len(activeDealStatuses)))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying active deals for house %d: %w", houseID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			deal       models.ContractualDeal
			clientID   sql.NullInt64
			hasDebt    bool
			clientName sql.NullString
			phones     sql.NullString
			buyType    sql.NullInt64
		)
		scanErr := rows.Scan(&deal.DealID, &deal.PropertyID, &deal.ContractArea, &clientID,
			&hasDebt, &clientName, &phones, &buyType)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning deal row for house %d: %w", houseID, scanErr)
		}
		deal.ClientID = clientID.Int64
		deal.HasDebt = hasDebt
		deal.ClientName = clientName.String
		deal.ClientPhone = phones.String
		if buyType.Valid && buyType.Int64 == 1 {
			deal.ClientType = "Юр. лицо"
		} else {
			deal.ClientType = "Физ. лицо"
		}
		deals[deal.PropertyID] = deal
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over deal rows for house %d: %w", houseID, err)
	}
	logger.L.Debug("CRM deal lookup complete", "houseID", houseID, "requested", len(propertyIDs), "matched", len(deals))
	return deals, nil
}

// ComplexesAndHouses lists every house grouped by residential complex, for the
// upload screen filters.
func (r *Repository) ComplexesAndHouses(ctx context.Context) (map[string][]models.House, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, complex_name, name FROM estate_houses
		WHERE complex_name IS NOT NULL AND name IS NOT NULL
		ORDER BY complex_name, name`)
	if err != nil {
		return nil, fmt.Errorf("error querying houses: %w", err)
	}
	defer rows.Close()

	houses := make(map[string][]models.House)
	for rows.Next() {
		var complexName string
		var h models.House
		if scanErr := rows.Scan(&h.ID, &complexName, &h.Name); scanErr != nil {
			return nil, fmt.Errorf("error scanning house row: %w", scanErr)
		}
		houses[complexName] = append(houses[complexName], h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over house rows: %w", err)
	}
	return houses, nil
}

// ApartmentsForHouse returns flat numbers with an active deal in the house,
// ordered numerically, for survey template generation.
func (r *Repository) ApartmentsForHouse(ctx context.Context, houseID int64) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT es.geo_flatnum FROM estate_deals d
		JOIN estate_sells es ON d.estate_sell_id = es.id
		WHERE d.house_id = ?
		  AND d.deal_status_name IN (%s)
		  AND es.estate_sell_category = ?
		ORDER BY CAST(es.geo_flatnum AS UNSIGNED)`, placeholders(len(activeDealStatuses)))

	args := []interface{}{houseID}
	for _, s := range activeDealStatuses {
		args = append(args, s)
	}
	args = append(args, sellCategoryFlat)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying apartments for house %d: %w", houseID, err)
	}
	defer rows.Close()

	var flats []string
	for rows.Next() {
		var flat string
		if scanErr := rows.Scan(&flat); scanErr != nil {
			return nil, fmt.Errorf("error scanning apartment row: %w", scanErr)
		}
		flats = append(flats, flat)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over apartment rows: %w", err)
	}
	return flats, nil
}

// UnitsForHouse returns section/floor placement for every flat of the house,
// for checkerboard exports.
func (r *Repository) UnitsForHouse(ctx context.Context, houseID int64) ([]Unit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT es.geo_flatnum, es.geo_section, es.geo_floor, d.deal_area
		FROM estate_deals d
		JOIN estate_sells es ON d.estate_sell_id = es.id
		WHERE d.house_id = ? AND es.estate_sell_category = ?
		ORDER BY es.geo_section, es.geo_floor, CAST(es.geo_flatnum AS UNSIGNED)`,
		houseID, sellCategoryFlat)
	if err != nil {
		return nil, fmt.Errorf("error querying units for house %d: %w", houseID, err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var u Unit
		if scanErr := rows.Scan(&u.PropertyID, &u.Section, &u.Floor, &u.ContractArea); scanErr != nil {
			return nil, fmt.Errorf("error scanning unit row: %w", scanErr)
		}
		units = append(units, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over unit rows: %w", err)
	}
	return units, nil
}

// FilteredDeals returns one page of the CRM-wide deals listing plus the total
// row count for pagination.
func (r *Repository) FilteredDeals(ctx context.Context, filter DealFilter, page, perPage int) ([]models.DealListItem, int, error) {
	baseQuery := `
		FROM estate_deals d
		JOIN estate_sells es ON d.estate_sell_id = es.id
		JOIN estate_houses h ON d.house_id = h.id
		LEFT JOIN estate_deals_contacts edc ON d.contacts_buy_id = edc.id`

	whereClauses := []string{"es.estate_sell_category = ?"}
	args := []interface{}{sellCategoryFlat}

	if filter.ComplexName != "" {
		whereClauses = append(whereClauses, "h.complex_name = ?")
		args = append(args, filter.ComplexName)
	}
	if filter.HouseID != 0 {
		whereClauses = append(whereClauses, "d.house_id = ?")
		args = append(args, filter.HouseID)
	}
	whereSQL := " WHERE " + strings.Join(whereClauses, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(d.id) "+baseQuery+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting deals: %w", err)
	}

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage
	dataQuery := `
		SELECT d.id, d.deal_status_name, es.geo_flatnum,
		       h.complex_name, h.name, edc.contacts_buy_name, edc.contacts_buy_phones
		` + baseQuery + whereSQL + `
		ORDER BY d.id DESC
		LIMIT ? OFFSET ?`
	args = append(args, perPage, offset)

	rows, err := r.db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("error querying deals page: %w", err)
	}
	defer rows.Close()

	var items []models.DealListItem
	for rows.Next() {
		var item models.DealListItem
		var clientName, phones sql.NullString
		scanErr := rows.Scan(&item.DealID, &item.DealStatusName, &item.PropertyID,
			&item.ComplexName, &item.HouseName, &clientName, &phones)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("error scanning deals page row: %w", scanErr)
		}
		item.ClientName = clientName.String
		item.ClientPhone = phones.String
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating over deals page rows: %w", err)
	}
	return items, total, nil
}

// DealDetails fetches the property number and client name of a single deal.
func (r *Repository) DealDetails(ctx context.Context, dealID int64) (*DealDetails, error) {
	var d DealDetails
	var clientName sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT d.id, es.geo_flatnum, edc.contacts_buy_name
		FROM estate_deals d
		JOIN estate_sells es ON d.estate_sell_id = es.id
		LEFT JOIN estate_deals_contacts edc ON d.contacts_buy_id = edc.id
		WHERE d.id = ?`, dealID).Scan(&d.DealID, &d.PropertyID, &clientName)
	if err == sql.ErrNoRows {
		return nil, ErrDealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying deal %d: %w", dealID, err)
	}
	d.ClientName = clientName.String
	return &d, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
