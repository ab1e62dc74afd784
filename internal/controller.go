package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cardroom/cardroom/internal/core"
	"github.com/cardroom/cardroom/internal/data"
	"github.com/cardroom/cardroom/internal/lobby"
)

// Controller is the main entrypoint for the cardroom. It's responsible for
// initializing any shared resources (such as database and logging), defining
// the servers, and launching everything.
type Controller struct {
	Config *core.Config

	logger *logrus.Logger
	wg     sync.WaitGroup

	lobby   *lobby.Lobby
	servers []*frontend
}

func (c *Controller) Start(ctx context.Context) {
	defer c.Shutdown(ctx)

	var err error
	// Set up the logger, which will be used by all sub-servers.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		fmt.Printf("error initializing logger: %v", err)
		return
	}

	if err := data.Initialize(c.Config.DatabaseURL(), c.Config.Logging.LogLevel == "debug"); err != nil {
		c.logger.Errorf("error connecting to database: %v", err)
		return
	}

	c.lobby = lobby.New(c.Config, c.logger, data.DB())

	c.declareServers()
	c.run(ctx)
}

// Set up all of the servers we want to run.
func (c *Controller) declareServers() {
	c.servers = []*frontend{
		{
			Address: c.buildAddress(c.Config.Web.HTTPPort),
			Service: c.lobby,
		},
	}
}

func (c *Controller) run(ctx context.Context) {
	// Start all of our servers. Failure to initialize one of the registered servers is considered terminal.
	for _, server := range c.servers {
		server.Config = c.Config
		server.Logger = c.logger

		if err := server.Start(ctx, &c.wg); err != nil {
			c.logger.Errorf("error starting server on %s: %v", server.Address, err)
			return
		}
	}

	c.wg.Wait()
}

func (c *Controller) buildAddress(port int) string {
	return fmt.Sprintf("%s:%v", c.Config.Hostname, port)
}

func (c *Controller) Shutdown(ctx context.Context) {
	c.wg.Wait()
	if c.lobby == nil {
		return
	}
	c.lobby.Shutdown()
	if err := data.Shutdown(); err != nil {
		c.logger.Warnf("error closing database connection: %v", err)
	}
}
