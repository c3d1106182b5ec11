package bolt

import (
	"context"

	pool "github.com/jolestar/go-commons-pool"

	"github.com/joknelid/golang-neo4j-bolt-connection/errors"
	"github.com/joknelid/golang-neo4j-bolt-connection/log"
)

// connectionFactory builds initialized connections for the pool
type connectionFactory struct {
	addr      string
	config    Config
	authToken map[string]interface{}
}

func (f *connectionFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	log.Infof("opening pooled connection to %s", f.addr)
	conn, err := ConnectInitialized(f.addr, f.config, f.authToken)
	if err != nil {
		return nil, err
	}
	return pool.NewPooledObject(conn), nil
}

func (f *connectionFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	return object.Object.(*Connection).Close()
}

func (f *connectionFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	return object.Object.(*Connection).IsOpen()
}

func (f *connectionFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func (f *connectionFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

// DriverPool hands out initialized connections to a single address and
// takes them back when the caller is done. Broken connections are
// discarded instead of being returned to the idle set.
type DriverPool struct {
	addr string
	pool *pool.ObjectPool
}

// NewDriverPool creates a pool of up to max initialized connections
func NewDriverPool(addr string, config Config, authToken map[string]interface{}, max int) *DriverPool {
	factory := &connectionFactory{addr: addr, config: config, authToken: authToken}
	poolConfig := pool.NewDefaultPoolConfig()
	poolConfig.MaxTotal = max
	poolConfig.MaxIdle = max
	poolConfig.TestOnBorrow = true
	return &DriverPool{
		addr: addr,
		pool: pool.NewObjectPool(context.Background(), factory, poolConfig),
	}
}

// Borrow takes a live connection from the pool, dialing one if none is
// idle and the pool is below its cap.
func (p *DriverPool) Borrow(ctx context.Context) (*Connection, error) {
	obj, err := p.pool.BorrowObject(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "borrowing connection to %s", p.addr)
	}
	return obj.(*Connection), nil
}

// Return gives a connection back. A connection that went bad while
// borrowed is invalidated so the pool dials a fresh one next time.
func (p *DriverPool) Return(ctx context.Context, conn *Connection) error {
	if !conn.IsOpen() {
		log.Infof("discarding broken connection to %s", p.addr)
		return p.pool.InvalidateObject(ctx, conn)
	}
	return p.pool.ReturnObject(ctx, conn)
}

// Close shuts the pool down, closing every idle connection
func (p *DriverPool) Close(ctx context.Context) {
	p.pool.Close(ctx)
}
