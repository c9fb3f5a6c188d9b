package simulator

import (
	"time"

	"jobconsole/internal/job"
)

// sampleImages is the image catalog of the simulated backend.
var sampleImages = []string{
	"nginx:latest",
	"node:16",
	"python:3.9",
	"mysql:8.0",
	"redis:alpine",
	"postgres:13",
	"ubuntu:20.04",
	"mongo:latest",
}

// sampleJobs returns the demo jobs, timestamped relative to now.
func sampleJobs(now time.Time) []*job.Job {
	ago := func(hours int) *time.Time {
		t := now.Add(-time.Duration(hours) * time.Hour)
		return &t
	}

	return []*job.Job{
		{
			ID:      "1",
			Name:    "Web Server",
			Image:   "nginx:latest",
			Status:  job.StatusRunning,
			Created: *ago(24),
			Started: ago(23),
			Config: job.Config{
				Ports:   []string{"80:80", "443:443"},
				Volumes: []string{"/data/nginx/conf:/etc/nginx/conf.d", "/data/nginx/logs:/var/log/nginx"},
				Env:     map[string]string{"NGINX_HOST": "example.com", "NGINX_PORT": "80"},
			},
		},
		{
			ID:      "2",
			Name:    "API Server",
			Image:   "node:16",
			Status:  job.StatusRunning,
			Created: *ago(48),
			Started: ago(47),
			Config: job.Config{
				Command:   []string{"npm", "start"},
				Ports:     []string{"3000:3000"},
				Volumes:   []string{"/data/app:/app"},
				Env:       map[string]string{"NODE_ENV": "production", "PORT": "3000", "DB_HOST": "localhost"},
				Resources: &job.Resources{CPUs: 1, Memory: "512m"},
			},
		},
		{
			ID:      "3",
			Name:    "Database",
			Image:   "postgres:13",
			Status:  job.StatusRunning,
			Created: *ago(72),
			Started: ago(71),
			Config: job.Config{
				Ports:     []string{"5432:5432"},
				Volumes:   []string{"/data/postgres:/var/lib/postgresql/data"},
				Env:       map[string]string{"POSTGRES_USER": "admin", "POSTGRES_PASSWORD": "secret", "POSTGRES_DB": "mydb"},
				Resources: &job.Resources{CPUs: 2, Memory: "1g"},
			},
		},
		{
			ID:       "4",
			Name:     "Failed Job",
			Image:    "python:3.9",
			Status:   job.StatusFailed,
			Created:  *ago(12),
			Started:  ago(11),
			Finished: ago(10),
			Config: job.Config{
				Command: []string{"python", "app.py"},
				Env:     map[string]string{"DEBUG": "true"},
			},
		},
		{
			ID:       "5",
			Name:     "Completed Job",
			Image:    "ubuntu:20.04",
			Status:   job.StatusCompleted,
			Created:  *ago(24),
			Started:  ago(23),
			Finished: ago(22),
			Config: job.Config{
				Command: []string{"bash", "-c", `echo "Hello World"`},
			},
		},
	}
}

var sampleLogs = map[string]string{
	"1": `2023-03-24T12:00:00.000Z [info] Starting nginx server...
2023-03-24T12:00:01.000Z [info] nginx/1.21.6
2023-03-24T12:00:01.500Z [info] Configuration file /etc/nginx/nginx.conf test successful
2023-03-24T12:00:02.000Z [info] nginx started successfully
2023-03-24T12:00:03.000Z [info] Accepting connections on port 80
2023-03-24T12:00:10.000Z [info] 192.168.1.100 - - [24/Mar/2023:12:00:10 +0000] "GET / HTTP/1.1" 200 612 "-" "Mozilla/5.0"
2023-03-24T12:05:22.000Z [info] 192.168.1.102 - - [24/Mar/2023:12:05:22 +0000] "GET /api HTTP/1.1" 404 153 "-" "curl/7.68.0"`,

	"2": `2023-03-23T08:00:00.000Z [info] Starting Node.js application...
2023-03-23T08:00:01.000Z [info] Node.js v16.14.0
2023-03-23T08:00:03.000Z [info] Connected to database successfully
2023-03-23T08:00:04.000Z [info] HTTP server listening on port 3000
2023-03-23T08:01:10.000Z [info] GET /api/users 200 52.135 ms
2023-03-23T08:10:33.000Z [info] POST /api/orders 201 143.871 ms
2023-03-23T08:15:45.000Z [error] Error connecting to database: connection timeout
2023-03-23T08:15:46.000Z [info] Reconnecting to database...
2023-03-23T08:15:48.000Z [info] Database connection re-established`,

	"3": `2023-03-22T06:00:00.000Z [info] Starting PostgreSQL 13.6...
2023-03-22T06:00:03.000Z [info] Database system was shut down at 2023-03-22 05:59:58 UTC
2023-03-22T06:00:04.000Z [info] Database system is ready to accept connections
2023-03-22T06:00:05.000Z [info] Autovacuum launcher started
2023-03-22T06:01:15.000Z [info] Connection received: host=localhost port=5432 database=mydb
2023-03-22T06:01:16.000Z [info] Authentication successful for user 'admin'`,

	"4": `2023-03-24T12:00:00.000Z [info] Starting Python application...
2023-03-24T12:00:01.000Z [info] Python 3.9.7
2023-03-24T12:00:02.000Z [info] Loading configuration...
2023-03-24T12:00:04.000Z [error] ModuleNotFoundError: No module named 'tensorflow'
2023-03-24T12:00:04.100Z [error] Traceback (most recent call last):
  File "app.py", line 10, in <module>
    import tensorflow as tf
ModuleNotFoundError: No module named 'tensorflow'
2023-03-24T12:00:04.200Z [error] Application failed to start. Exiting with code 1`,

	"5": `2023-03-23T12:00:00.000Z [info] Starting script...
2023-03-23T12:00:01.000Z [info] Running: bash -c echo "Hello World"
2023-03-23T12:00:01.500Z [info] Hello World
2023-03-23T12:00:02.000Z [info] Script completed successfully
2023-03-23T12:00:02.100Z [info] Exiting with code 0`,
}

// seed loads the sample catalog into r.
func seed(r *Registry, now time.Time) {
	for _, j := range sampleJobs(now) {
		r.Insert(j)
	}
	for id, text := range sampleLogs {
		r.SetLogs(id, text)
	}
}
