package client

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/squareup/pqstream/common"
	"github.com/squareup/pqstream/conf"
	"github.com/squareup/pqstream/conn"
	"github.com/squareup/pqstream/errors"
	"github.com/squareup/pqstream/metrics"
	"github.com/squareup/pqstream/result"
)

const (
	maxBufferedLines     = 1000
	minColWidth          = 5
	maxLineWidthPropName = "max_line_width"
)

// Client executes statements on a single connection and renders their results as lines of text. It is used by the
// shell and the exec command. Statements are run one at a time.
type Client struct {
	lock           sync.Mutex
	execLock       sync.Mutex
	started        bool
	conn           conn.Conn
	metricsFactory metrics.Factory
	pageSize       int
	maxLineWidth   int

	statementsExecuted metrics.Counter
	statementsFailed   metrics.Counter
	rowsFetched        metrics.Counter
	batchRowsExecuted  metrics.Counter
}

func New(config conf.Config, c conn.Conn, metricsFactory metrics.Factory) *Client {
	if metricsFactory == nil {
		metricsFactory = metrics.NewNoopFactory()
	}
	return &Client{
		conn:           c,
		metricsFactory: metricsFactory,
		pageSize:       config.PageSize,
		maxLineWidth:   config.MaxLineWidth,
	}
}

func (c *Client) Start() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.started {
		return nil
	}
	if err := c.metricsFactory.Start(); err != nil {
		return err
	}
	var err error
	if c.statementsExecuted, err = c.metricsFactory.CreateCounter("statements_executed_total",
		"Number of statements executed"); err != nil {
		return err
	}
	if c.statementsFailed, err = c.metricsFactory.CreateCounter("statements_failed_total",
		"Number of statements that failed"); err != nil {
		return err
	}
	if c.rowsFetched, err = c.metricsFactory.CreateCounter("rows_fetched_total",
		"Number of result rows materialized"); err != nil {
		return err
	}
	if c.batchRowsExecuted, err = c.metricsFactory.CreateCounter("batch_rows_executed_total",
		"Number of parameter rows executed by batch statements"); err != nil {
		return err
	}
	c.started = true
	return nil
}

func (c *Client) Stop() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.started {
		return nil
	}
	c.started = false
	return c.metricsFactory.Stop()
}

func (c *Client) SetPageSize(pageSize int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.pageSize = pageSize
}

func (c *Client) checkStarted() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.started {
		return errors.Error("not started")
	}
	return nil
}

// ExecuteStatement executes a statement. Lines of output will be received on the channel that is returned.
// When the channel is closed, the results are complete. Cancelling ctx interrupts the statement.
func (c *Client) ExecuteStatement(ctx context.Context, statement string, params []*string) (chan string, error) {
	if err := c.checkStarted(); err != nil {
		return nil, err
	}
	statement = strings.TrimSpace(statement)
	statement = strings.TrimSuffix(statement, ";")
	ch := make(chan string, maxBufferedLines)
	go c.doExecuteStatement(ctx, statement, params, ch)
	return ch, nil
}

func (c *Client) sendErrorToChannel(ch chan string, errMsg string) {
	ch <- fmt.Sprintf("Failed to execute statement: %s", errMsg)
}

func (c *Client) doExecuteStatement(ctx context.Context, statement string, params []*string, ch chan string) {
	defer close(ch)
	lowerStat := strings.ToLower(statement)
	if lowerStat == "set" || strings.HasPrefix(lowerStat, "set "+maxLineWidthPropName) {
		if err := c.handleSetCommand(lowerStat); err != nil {
			c.sendErrorToChannel(ch, err.Error())
		}
		return
	}
	c.execLock.Lock()
	defer c.execLock.Unlock()
	c.statementsExecuted.Inc()
	if err := c.doExecuteStatementWithError(ctx, statement, params, ch); err != nil {
		c.statementsFailed.Inc()
		log.Debugf("statement failed %v", err)
		c.sendErrorToChannel(ch, err.Error())
	}
}

func (c *Client) handleSetCommand(statement string) error {
	parts := strings.Fields(statement)
	if len(parts) != 3 {
		return errors.Error("Invalid set command. Should be set <prop_name> <prop_value>")
	}
	if propName := parts[1]; propName == maxLineWidthPropName {
		propVal := parts[2]
		width, err := strconv.Atoi(propVal)
		if err != nil || width < conf.MinLineWidth || width > conf.MaxLineWidth {
			return errors.Errorf("Invalid %s value: %s", maxLineWidthPropName, propVal)
		}
		c.lock.Lock()
		defer c.lock.Unlock()
		c.maxLineWidth = width
	} else {
		return errors.Errorf("Unknown property: %s", propName)
	}
	return nil
}

func (c *Client) settings() (pageSize int, maxLineWidth int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.pageSize, c.maxLineWidth
}

func (c *Client) doExecuteStatementWithError(ctx context.Context, statement string, params []*string, ch chan string) error {
	rs, err := result.Prepare(ctx, c.conn, statement)
	if err != nil {
		return err
	}
	defer rs.Close()
	if !rs.Bound() {
		if err := rs.Bind(ctx, params); err != nil {
			return err
		}
	} else if len(params) > 0 {
		// statements without parameters are executed by Prepare
		ch <- fmt.Sprintf("Warning: statement takes no params, %d ignored", len(params))
	}
	for _, w := range rs.Warnings() {
		ch <- fmt.Sprintf("Warning: %s", w.Error())
	}

	schema := rs.Schema()
	if len(schema) == 0 {
		n, err := rs.RowsAffected(ctx)
		if err != nil {
			return err
		}
		ch <- fmt.Sprintf("%d rows affected", n)
		return nil
	}

	pageSize, maxLineWidth := c.settings()
	columnWidths := calcColumnWidths(maxLineWidth, schema.Types(), schema.Names())
	header := writeHeader(schema.Names(), columnWidths)
	headerBorder := createHeaderBorder(len(header))
	ch <- headerBorder
	ch <- header
	ch <- headerBorder

	materializer := &result.Materializer{InitialCapacity: pageSize}
	rowCount := 0
	for {
		cols, err := materializer.Fetch(ctx, rs, pageSize)
		if err != nil {
			return err
		}
		for i := 0; i < cols.RowCount(); i++ {
			ch <- formatLine(cols, i, columnWidths)
		}
		rowCount += cols.RowCount()
		c.rowsFetched.Add(float64(cols.RowCount()))
		if cols.RowCount() < pageSize {
			break
		}
	}
	if rowCount > 0 {
		ch <- headerBorder
	}
	ch <- fmt.Sprintf("%d rows returned", rowCount)
	return nil
}

// ExecuteBatch executes statement once per parameter row. params holds one slice per statement parameter, all of
// the same length. It returns the number of rows executed.
func (c *Client) ExecuteBatch(ctx context.Context, statement string, params [][]*string) (int, error) {
	if err := c.checkStarted(); err != nil {
		return 0, err
	}
	c.execLock.Lock()
	defer c.execLock.Unlock()
	c.statementsExecuted.Inc()
	rs, err := result.Prepare(ctx, c.conn, strings.TrimSuffix(strings.TrimSpace(statement), ";"))
	if err != nil {
		c.statementsFailed.Inc()
		return 0, err
	}
	defer rs.Close()
	if rs.NumParams() == 0 {
		// already executed once by Prepare
		return 1, nil
	}
	if err := rs.BindRows(ctx, params); err != nil {
		c.statementsFailed.Inc()
		var rowErr errors.RowExecError
		if errors.As(err, &rowErr) {
			c.batchRowsExecuted.Add(float64(rowErr.RowIndex - 1))
		}
		return 0, err
	}
	n := len(params[0])
	c.batchRowsExecuted.Add(float64(n))
	return n, nil
}

// DescribeStatement writes a table of the parameters and result columns of statement to w without executing it.
func (c *Client) DescribeStatement(ctx context.Context, statement string, w io.Writer) error {
	if err := c.checkStarted(); err != nil {
		return err
	}
	c.execLock.Lock()
	defer c.execLock.Unlock()
	desc, err := result.Describe(ctx, c.conn, strings.TrimSuffix(strings.TrimSpace(statement), ";"))
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"column", "type", "class"})
	table.SetAutoFormatHeaders(false)
	for _, ci := range desc.Schema {
		table.Append([]string{ci.Name, ci.Type.Label(), ci.Type.Class()})
	}
	table.Render()
	if _, err := fmt.Fprintf(w, "%d params\n", desc.NumParams); err != nil {
		return errors.WithStack(err)
	}
	for _, warning := range desc.Warnings {
		if _, err := fmt.Fprintf(w, "Warning: %s\n", warning.Error()); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func writeHeader(columnNames []string, columnWidths []int) string {
	sb := &strings.Builder{}
	sb.WriteString("|")
	for i, v := range columnNames {
		sb.WriteRune(' ')
		sb.WriteString(rightPadToWidth(columnWidths[i], truncate(v, columnWidths[i])))
		sb.WriteString(" |")
	}
	return sb.String()
}

func createHeaderBorder(headerLen int) string {
	return "+" + strings.Repeat("-", headerLen-2) + "+"
}

func truncate(s string, width int) string {
	if len(s) > width {
		return s[:width-2] + ".."
	}
	return s
}

func rightPadToWidth(width int, s string) string {
	padSpaces := width - len(s)
	if padSpaces <= 0 {
		return s
	}
	return s + strings.Repeat(" ", padSpaces)
}

func formatLine(cols *common.Columns, rowIndex int, colWidths []int) string {
	sb := &strings.Builder{}
	sb.WriteString("|")
	for i := 0; i < cols.ColumnCount(); i++ {
		sb.WriteRune(' ')
		cw := colWidths[i]
		sb.WriteString(rightPadToWidth(cw, truncate(cols.Column(i).Format(rowIndex), cw)))
		sb.WriteString(" |")
	}
	return sb.String()
}

// fixedColumnWidth is the display width of types whose values have a bounded length. Other types share the
// remaining width.
func fixedColumnWidth(colType common.ColumnType) int {
	switch colType {
	case common.TypeInteger:
		return 20
	case common.TypeLogical:
		return 5
	case common.TypeDate:
		return 10
	case common.TypeTime:
		return 15
	case common.TypeTimestamp, common.TypeTimestampTZ:
		return 26
	default:
		return 0
	}
}

func calcColumnWidths(maxLineWidth int, colTypes []common.ColumnType, colNames []string) []int {
	l := len(colTypes)
	if l == 0 {
		return []int{}
	}
	colWidths := make([]int, l)
	var freeCols []int
	availWidth := maxLineWidth - 1
	// We try to give the full col width to any cols with a fixed max size
	for i, colType := range colTypes {
		w := fixedColumnWidth(colType)
		if w == 0 {
			freeCols = append(freeCols, i)
			continue
		}
		if len(colNames[i]) > w {
			w = len(colNames[i])
		}
		colWidths[i] = w
		availWidth -= w + 3
		if availWidth < 0 {
			break
		}
	}
	if availWidth < 0 {
		return calcEvenColWidths(maxLineWidth, l)
	} else if len(freeCols) > 0 {
		freeColWidth := (availWidth / len(freeCols)) - 3
		if freeColWidth < minColWidth {
			return calcEvenColWidths(maxLineWidth, l)
		}
		for _, freeCol := range freeCols {
			colWidths[freeCol] = freeColWidth
		}
	}
	return colWidths
}

func calcEvenColWidths(maxLineWidth int, numCols int) []int {
	colWidth := (maxLineWidth - 3*numCols - 1) / numCols
	if colWidth < minColWidth {
		colWidth = minColWidth
	}
	colWidths := make([]int, numCols)
	for i := range colWidths {
		colWidths[i] = colWidth
	}
	return colWidths
}
