package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"memoria.org/internal/access"
	"memoria.org/internal/audit"
	"memoria.org/internal/httpapi"
	"memoria.org/internal/identity"
	"memoria.org/internal/obs"
	"memoria.org/internal/profile"
	"memoria.org/internal/store/pg"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("MEMORIA_COMMIT"))

	// Stores: PostgreSQL when a DSN is configured, in-memory otherwise.
	var (
		grantStore   access.GrantStore
		profileStore profile.Store
		userStore    identity.Store
		auditStore   audit.Store
		probe        httpapi.ReadyProbe
		pgStore      *pg.Store
	)
	if dsn := os.Getenv("MEMORIA_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		grantStore = pgStore.Grants()
		profileStore = pgStore.Profiles()
		userStore = pgStore.Users()
		auditStore = pgStore.Audit()
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		log.Println("MEMORIA_PG_DSN not set, using in-memory stores")
		grantStore = access.NewInMemory()
		profileStore = profile.NewInMemory()
		userStore = identity.NewInMemory()
		auditStore = audit.NewInMemory()
	}

	recorder, err := audit.NewRecorder(auditStore, time.Now)
	if err != nil {
		log.Fatalf("audit recorder: %v", err)
	}
	evaluator, err := access.NewEvaluator(grantStore, profileStore)
	if err != nil {
		log.Fatalf("evaluator: %v", err)
	}
	accessSvc, err := access.NewService(grantStore, evaluator, recorder)
	if err != nil {
		log.Fatalf("access service: %v", err)
	}
	workflow, err := profile.NewWorkflow(profileStore, evaluator, recorder)
	if err != nil {
		log.Fatalf("workflow: %v", err)
	}
	identitySvc, err := identity.NewService(userStore, accessSvc)
	if err != nil {
		log.Fatalf("identity service: %v", err)
	}

	api := httpapi.New(probe, version, identitySvc, accessSvc, workflow, recorder)

	srv := &http.Server{
		Addr:              httpAddr(),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting memoria-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// gRPC health endpoint alongside the HTTP server.
	healthCtx, stopHealth := context.WithCancel(context.Background())
	grpcSrv := grpc.NewServer()
	health := httpapi.NewGRPCHealth(probe)
	health.Register(grpcSrv)
	go health.Watch(healthCtx, 5*time.Second)
	go func() {
		lis, err := net.Listen("tcp", grpcAddr())
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		if err := grpcSrv.Serve(lis); err != nil {
			log.Printf("grpc serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	stopHealth()
	grpcSrv.GracefulStop()
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

func httpAddr() string {
	if addr := os.Getenv("MEMORIA_HTTP_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}

func grpcAddr() string {
	if addr := os.Getenv("MEMORIA_GRPC_ADDR"); addr != "" {
		return addr
	}
	return ":9090"
}
